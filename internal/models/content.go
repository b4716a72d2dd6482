package models

import "time"

// SkillRequirement states the minimum level required for one skill.
type SkillRequirement struct {
	Skill string `json:"skill"`
	Level int    `json:"level"`
}

// LearningContent is a course unit/lesson described by the content catalog.
// The engine treats it as read-only reference data.
type LearningContent struct {
	ID                string             `db:"id" json:"id"`
	CourseID          string             `db:"course_id" json:"course_id"`
	UnitNumber        int                `db:"unit_number" json:"unit_number"`
	LessonNumber      int                `db:"lesson_number" json:"lesson_number"`
	Title             string             `db:"title" json:"title"`
	Prerequisites     []string           `json:"prerequisites,omitempty"`
	Difficulty        int                `db:"difficulty" json:"difficulty"`
	RequiredSkills    []SkillRequirement `json:"required_skills,omitempty"`
	EstimatedDuration time.Duration      `db:"estimated_duration" json:"estimated_duration"`
}
