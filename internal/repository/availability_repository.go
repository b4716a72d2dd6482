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

// AvailabilityRepository reads teacher availability and profiles.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

type availabilityRow struct {
	TeacherID         string         `db:"teacher_id"`
	AvailableSlots    types.JSONText `db:"available_slots"`
	RecurringPatterns types.JSONText `db:"recurring_patterns"`
	BlockedSlots      types.JSONText `db:"blocked_slots"`
}

// GetTeacherAvailability returns availability for a teacher limited to slots
// inside [from, to).
func (r *AvailabilityRepository) GetTeacherAvailability(ctx context.Context, teacherID string, from, to time.Time) (*models.TeacherAvailability, error) {
	const query = `SELECT teacher_id, available_slots, recurring_patterns, blocked_slots
		FROM teacher_availability WHERE teacher_id = $1`
	var row availabilityRow
	if err := r.db.GetContext(ctx, &row, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no availability for teacher %s", teacherID))
		}
		return nil, fmt.Errorf("load teacher availability: %w", err)
	}

	availability := &models.TeacherAvailability{TeacherID: row.TeacherID}
	if len(row.AvailableSlots) > 0 {
		if err := json.Unmarshal(row.AvailableSlots, &availability.AvailableSlots); err != nil {
			return nil, fmt.Errorf("decode available slots for teacher %s: %w", teacherID, err)
		}
	}
	if len(row.RecurringPatterns) > 0 {
		if err := json.Unmarshal(row.RecurringPatterns, &availability.RecurringPatterns); err != nil {
			return nil, fmt.Errorf("decode recurring patterns for teacher %s: %w", teacherID, err)
		}
	}
	if len(row.BlockedSlots) > 0 {
		if err := json.Unmarshal(row.BlockedSlots, &availability.BlockedSlots); err != nil {
			return nil, fmt.Errorf("decode blocked slots for teacher %s: %w", teacherID, err)
		}
	}

	availability.AvailableSlots = filterSlotsInRange(availability.AvailableSlots, from, to)
	return availability, nil
}

// ListTeacherProfiles returns matching profiles for teachers qualified for
// the course.
func (r *AvailabilityRepository) ListTeacherProfiles(ctx context.Context, courseID string) ([]models.TeacherProfile, error) {
	const query = `SELECT t.teacher_id, t.years_experience, t.specializations, t.languages, t.average_rating, t.completion_rate
		FROM teacher_profiles t
		JOIN teacher_courses tc ON tc.teacher_id = t.teacher_id
		WHERE tc.course_id = $1
		ORDER BY t.average_rating DESC`
	var rows []teacherProfileRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list teacher profiles: %w", err)
	}
	profiles := make([]models.TeacherProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := row.toModel()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

type teacherProfileRow struct {
	TeacherID       string         `db:"teacher_id"`
	YearsExperience int            `db:"years_experience"`
	Specializations types.JSONText `db:"specializations"`
	Languages       types.JSONText `db:"languages"`
	AverageRating   float64        `db:"average_rating"`
	CompletionRate  float64        `db:"completion_rate"`
}

func (r teacherProfileRow) toModel() (models.TeacherProfile, error) {
	profile := models.TeacherProfile{
		TeacherID:       r.TeacherID,
		YearsExperience: r.YearsExperience,
		AverageRating:   r.AverageRating,
		CompletionRate:  r.CompletionRate,
	}
	if len(r.Specializations) > 0 {
		if err := json.Unmarshal(r.Specializations, &profile.Specializations); err != nil {
			return profile, fmt.Errorf("decode specializations for teacher %s: %w", r.TeacherID, err)
		}
	}
	if len(r.Languages) > 0 {
		if err := json.Unmarshal(r.Languages, &profile.Languages); err != nil {
			return profile, fmt.Errorf("decode languages for teacher %s: %w", r.TeacherID, err)
		}
	}
	return profile, nil
}

func filterSlotsInRange(slots []models.TimeSlot, from, to time.Time) []models.TimeSlot {
	if from.IsZero() && to.IsZero() {
		return slots
	}
	filtered := make([]models.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if !to.IsZero() && !slot.StartTime.Before(to) {
			continue
		}
		if !from.IsZero() && slot.EndTime.Before(from) {
			continue
		}
		filtered = append(filtered, slot)
	}
	return filtered
}
