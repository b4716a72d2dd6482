package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

// ProgressRepository reads student progress records. Progress is mutated only
// by the completion-reporting collaborator; the engine never writes it.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

type studentProgressRow struct {
	StudentID          string         `db:"student_id"`
	CourseID           string         `db:"course_id"`
	CompletedContent   types.JSONText `db:"completed_content"`
	InProgressContent  types.JSONText `db:"in_progress_content"`
	UnlearnedContent   types.JSONText `db:"unlearned_content"`
	ProgressPercentage float64        `db:"progress_percentage"`
	Pace               string         `db:"pace"`
	AttendanceRate     float64        `db:"attendance_rate"`
	AssignmentRate     float64        `db:"assignment_completion_rate"`
	AverageScore       float64        `db:"average_score"`
	PreferredSlots     types.JSONText `db:"preferred_slots"`
	OptimalClassSize   int            `db:"optimal_class_size"`
	SkillLevels        types.JSONText `db:"skill_levels"`
	RecentTeacherIDs   types.JSONText `db:"recent_teacher_ids"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r studentProgressRow) toModel() (*models.StudentProgress, error) {
	progress := &models.StudentProgress{
		StudentID:          r.StudentID,
		CourseID:           r.CourseID,
		ProgressPercentage: r.ProgressPercentage,
		Pace:               models.LearningPace(r.Pace),
		Performance: models.PerformanceMetrics{
			AttendanceRate:           r.AttendanceRate,
			AssignmentCompletionRate: r.AssignmentRate,
			AverageScore:             r.AverageScore,
		},
		OptimalClassSize: r.OptimalClassSize,
		UpdatedAt:        r.UpdatedAt,
	}
	for field, dest := range map[string]interface{}{
		"completed_content":   &progress.CompletedContent,
		"in_progress_content": &progress.InProgressContent,
		"unlearned_content":   &progress.UnlearnedContent,
		"preferred_slots":     &progress.PreferredSlots,
		"skill_levels":        &progress.SkillLevels,
		"recent_teacher_ids":  &progress.RecentTeacherIDs,
	} {
		raw := r.jsonField(field)
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return nil, fmt.Errorf("decode %s for student %s: %w", field, r.StudentID, err)
		}
	}
	if err := progress.Validate(); err != nil {
		return nil, fmt.Errorf("invalid progress record for student %s: %w", r.StudentID, err)
	}
	return progress, nil
}

func (r studentProgressRow) jsonField(name string) types.JSONText {
	switch name {
	case "completed_content":
		return r.CompletedContent
	case "in_progress_content":
		return r.InProgressContent
	case "unlearned_content":
		return r.UnlearnedContent
	case "preferred_slots":
		return r.PreferredSlots
	case "skill_levels":
		return r.SkillLevels
	case "recent_teacher_ids":
		return r.RecentTeacherIDs
	}
	return nil
}

// GetStudentProgress returns the progress record for a student-course pair.
func (r *ProgressRepository) GetStudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, error) {
	const query = `SELECT student_id, course_id, completed_content, in_progress_content, unlearned_content,
		progress_percentage, pace, attendance_rate, assignment_completion_rate, average_score,
		preferred_slots, optimal_class_size, skill_levels, recent_teacher_ids, updated_at
		FROM student_progress WHERE student_id = $1 AND course_id = $2`
	var row studentProgressRow
	if err := r.db.GetContext(ctx, &row, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no progress for student %s in course %s", studentID, courseID))
		}
		return nil, fmt.Errorf("load student progress: %w", err)
	}
	return row.toModel()
}
