package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

// BookingRepository persists scheduled classes. Enrollment commits use an
// optimistic version check so concurrent requests cannot overbook a slot.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type scheduledClassRow struct {
	ID                string         `db:"id"`
	CourseID          string         `db:"course_id"`
	TeacherID         string         `db:"teacher_id"`
	StudentIDs        types.JSONText `db:"student_ids"`
	SlotStart         time.Time      `db:"slot_start"`
	SlotEnd           time.Time      `db:"slot_end"`
	Location          *string        `db:"location"`
	MaxStudents       int            `db:"max_students"`
	MinStudents       int            `db:"min_students"`
	CurrentEnrollment int            `db:"current_enrollment"`
	ContentIDs        types.JSONText `db:"content_ids"`
	Type              string         `db:"type"`
	Status            string         `db:"status"`
	ConfidenceScore   float64        `db:"confidence_score"`
	Version           int            `db:"version"`
	Metadata          types.JSONText `db:"metadata"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r scheduledClassRow) toModel() (models.ScheduledClass, error) {
	class := models.ScheduledClass{
		ID:        r.ID,
		CourseID:  r.CourseID,
		TeacherID: r.TeacherID,
		Slot: models.TimeSlot{
			ID:          r.ID,
			StartTime:   r.SlotStart,
			EndTime:     r.SlotEnd,
			DayOfWeek:   r.SlotStart.Weekday(),
			IsAvailable: r.CurrentEnrollment < r.MaxStudents,
			Location:    r.Location,
			Capacity: models.ClassCapacityConstraint{
				MaxStudents:       r.MaxStudents,
				MinStudents:       r.MinStudents,
				CurrentEnrollment: r.CurrentEnrollment,
			},
		},
		Type:            models.ClassType(r.Type),
		Status:          models.ClassStatus(r.Status),
		ConfidenceScore: r.ConfidenceScore,
		Version:         r.Version,
		Metadata:        r.Metadata,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if len(r.StudentIDs) > 0 {
		if err := json.Unmarshal(r.StudentIDs, &class.StudentIDs); err != nil {
			return class, fmt.Errorf("decode student ids for class %s: %w", r.ID, err)
		}
	}
	if len(r.ContentIDs) > 0 {
		if err := json.Unmarshal(r.ContentIDs, &class.ContentIDs); err != nil {
			return class, fmt.Errorf("decode content ids for class %s: %w", r.ID, err)
		}
	}
	return class, nil
}

const scheduledClassColumns = `id, course_id, teacher_id, student_ids, slot_start, slot_end, location,
	max_students, min_students, current_enrollment, content_ids, type, status,
	confidence_score, version, metadata, created_at, updated_at`

// Create inserts a new scheduled class. A unique index on
// (teacher_id, slot_start) rejects double-booking a teacher at the same time.
func (r *BookingRepository) Create(ctx context.Context, class *models.ScheduledClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	class.Version = 1

	studentIDs, err := json.Marshal(class.StudentIDs)
	if err != nil {
		return fmt.Errorf("encode student ids: %w", err)
	}
	contentIDs, err := json.Marshal(class.ContentIDs)
	if err != nil {
		return fmt.Errorf("encode content ids: %w", err)
	}
	metadata := class.Metadata
	if len(metadata) == 0 {
		metadata = types.JSONText("{}")
	}

	const query = `INSERT INTO scheduled_classes (` + scheduledClassColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = r.db.ExecContext(ctx, query,
		class.ID, class.CourseID, class.TeacherID, types.JSONText(studentIDs),
		class.Slot.StartTime, class.Slot.EndTime, class.Slot.Location,
		class.Slot.Capacity.MaxStudents, class.Slot.Capacity.MinStudents, len(class.StudentIDs),
		types.JSONText(contentIDs), string(class.Type), string(class.Status),
		class.ConfidenceScore, class.Version, metadata, class.CreatedAt, class.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.Wrap(err, appErrors.ErrConflict, "teacher already booked for this slot")
		}
		return fmt.Errorf("insert scheduled class: %w", err)
	}
	return nil
}

// FindByID loads one scheduled class.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.ScheduledClass, error) {
	const query = `SELECT ` + scheduledClassColumns + ` FROM scheduled_classes WHERE id = $1`
	var row scheduledClassRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	class, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByDateRange returns bookings overlapping [from, to).
func (r *BookingRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.ScheduledClass, error) {
	const query = `SELECT ` + scheduledClassColumns + ` FROM scheduled_classes
		WHERE slot_start < $2 AND slot_end > $1 AND status != 'cancelled'
		ORDER BY slot_start ASC`
	var rows []scheduledClassRow
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	classes := make([]models.ScheduledClass, 0, len(rows))
	for _, row := range rows {
		class, err := row.toModel()
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// CommitEnrollment performs the last-read-then-commit critical section: it
// re-reads the booking record under a row lock, rejects capacity breaches
// caused by concurrent requests, and bumps the version. A stale version or a
// full class is reported, never silently overwritten.
func (r *BookingRepository) CommitEnrollment(ctx context.Context, classID string, expectedVersion int, studentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current struct {
		CurrentEnrollment int `db:"current_enrollment"`
		MaxStudents       int `db:"max_students"`
		Version           int `db:"version"`
	}
	const lockQuery = `SELECT current_enrollment, max_students, version FROM scheduled_classes WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, classID); err != nil {
		if err == sql.ErrNoRows {
			err = appErrors.Clone(appErrors.ErrNotFound, "scheduled class not found")
		}
		return err
	}
	if current.Version != expectedVersion {
		err = appErrors.Clone(appErrors.ErrConflict, "booking record changed since it was read")
		return err
	}
	if len(studentIDs) > current.MaxStudents {
		err = appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("enrollment %d exceeds capacity %d", len(studentIDs), current.MaxStudents))
		return err
	}

	encoded, marshalErr := json.Marshal(studentIDs)
	if marshalErr != nil {
		err = fmt.Errorf("encode student ids: %w", marshalErr)
		return err
	}

	const update = `UPDATE scheduled_classes
		SET student_ids = $1, current_enrollment = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`
	result, execErr := tx.ExecContext(ctx, update, types.JSONText(encoded), len(studentIDs), time.Now().UTC(), classID, expectedVersion)
	if execErr != nil {
		err = fmt.Errorf("commit enrollment: %w", execErr)
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "booking record changed since it was read")
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// UpdateStatus applies a class lifecycle transition, enforcing the one-way
// status machine.
func (r *BookingRepository) UpdateStatus(ctx context.Context, classID string, from, to models.ClassStatus) error {
	if !from.CanTransition(to) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("illegal status transition %s -> %s", from, to))
	}
	const query = `UPDATE scheduled_classes SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, string(to), time.Now().UTC(), classID, string(from))
	if err != nil {
		return fmt.Errorf("update class status: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class status changed since it was read")
	}
	return nil
}

// Delete removes a class record. Only cancelled classes may be deleted.
func (r *BookingRepository) Delete(ctx context.Context, classID string) error {
	const query = `DELETE FROM scheduled_classes WHERE id = $1 AND status = 'cancelled'`
	result, err := r.db.ExecContext(ctx, query, classID)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "only cancelled classes can be deleted")
	}
	return nil
}
