package models

import (
	"fmt"
	"time"
)

// LearningPace expresses how quickly a student moves through content.
type LearningPace string

const (
	PaceSlow     LearningPace = "slow"
	PaceModerate LearningPace = "moderate"
	PaceFast     LearningPace = "fast"
)

// Factor maps the pace onto a content-density multiplier.
func (p LearningPace) Factor() float64 {
	switch p {
	case PaceSlow:
		return 0.75
	case PaceFast:
		return 1.25
	default:
		return 1.0
	}
}

// PerformanceMetrics summarises observed student performance.
// Rates are in [0,1]; AverageScore is in [0,100].
type PerformanceMetrics struct {
	AttendanceRate           float64 `db:"attendance_rate" json:"attendance_rate"`
	AssignmentCompletionRate float64 `db:"assignment_completion_rate" json:"assignment_completion_rate"`
	AverageScore             float64 `db:"average_score" json:"average_score"`
}

// StudentProgress tracks one student-course pair. Mutated only by the
// completion-reporting collaborator; the engine reads it.
type StudentProgress struct {
	StudentID          string             `db:"student_id" json:"student_id"`
	CourseID           string             `db:"course_id" json:"course_id"`
	CompletedContent   []string           `json:"completed_content"`
	InProgressContent  []string           `json:"in_progress_content"`
	UnlearnedContent   []string           `json:"unlearned_content"`
	ProgressPercentage float64            `db:"progress_percentage" json:"progress_percentage"`
	Pace               LearningPace       `db:"pace" json:"pace"`
	Performance        PerformanceMetrics `json:"performance"`
	PreferredSlots     []TimeSlot         `json:"preferred_slots,omitempty"`
	OptimalClassSize   int                `db:"optimal_class_size" json:"optimal_class_size"`
	SkillLevels        map[string]int     `json:"skill_levels,omitempty"`
	RecentTeacherIDs   []string           `json:"recent_teacher_ids,omitempty"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Completed reports whether the content item is in the completed set.
func (p *StudentProgress) Completed(contentID string) bool {
	for _, id := range p.CompletedContent {
		if id == contentID {
			return true
		}
	}
	return false
}

// Validate checks that completed and unlearned sets partition cleanly and
// percentages stay in range.
func (p *StudentProgress) Validate() error {
	completed := make(map[string]struct{}, len(p.CompletedContent))
	for _, id := range p.CompletedContent {
		completed[id] = struct{}{}
	}
	for _, id := range p.UnlearnedContent {
		if _, ok := completed[id]; ok {
			return fmt.Errorf("content %s present in both completed and unlearned sets", id)
		}
	}
	if p.ProgressPercentage < 0 || p.ProgressPercentage > 100 {
		return fmt.Errorf("progress percentage %.2f out of range", p.ProgressPercentage)
	}
	return nil
}
