package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassType distinguishes individual and group classes.
type ClassType string

const (
	ClassTypeIndividual ClassType = "individual"
	ClassTypeGroup      ClassType = "group"
)

// ClassStatus tracks the one-way class lifecycle:
// scheduled → confirmed → cancelled, plus scheduled → cancelled.
type ClassStatus string

const (
	ClassStatusScheduled ClassStatus = "scheduled"
	ClassStatusConfirmed ClassStatus = "confirmed"
	ClassStatusCancelled ClassStatus = "cancelled"
)

// CanTransition reports whether the status change is legal.
func (s ClassStatus) CanTransition(to ClassStatus) bool {
	switch s {
	case ClassStatusScheduled:
		return to == ClassStatusConfirmed || to == ClassStatusCancelled
	case ClassStatusConfirmed:
		return to == ClassStatusCancelled
	}
	return false
}

// AlternativeOption is a ranked fallback attached to a scheduled class.
type AlternativeOption struct {
	Rank      int      `json:"rank"`
	TeacherID string   `json:"teacher_id"`
	Slot      TimeSlot `json:"slot"`
	Score     float64  `json:"score"`
}

// ScheduledClass is a concrete (or candidate) class assignment. Version backs
// the optimistic-concurrency commit on the booking record.
type ScheduledClass struct {
	ID              string              `db:"id" json:"id"`
	CourseID        string              `db:"course_id" json:"course_id"`
	TeacherID       string              `db:"teacher_id" json:"teacher_id"`
	StudentIDs      []string            `json:"student_ids"`
	Slot            TimeSlot            `json:"slot"`
	ContentIDs      []string            `json:"content_ids"`
	Type            ClassType           `db:"type" json:"type"`
	Status          ClassStatus         `db:"status" json:"status"`
	ConfidenceScore float64             `db:"confidence_score" json:"confidence_score"`
	Alternatives    []AlternativeOption `json:"alternatives,omitempty"`
	Version         int                 `db:"version" json:"version"`
	Metadata        types.JSONText      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// HasStudent reports whether the student is enrolled in this class.
func (c *ScheduledClass) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// SharesStudent reports whether two classes have any student in common.
func (c *ScheduledClass) SharesStudent(other *ScheduledClass) bool {
	for _, id := range other.StudentIDs {
		if c.HasStudent(id) {
			return true
		}
	}
	return false
}
