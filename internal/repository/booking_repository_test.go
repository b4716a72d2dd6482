package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func testScheduledClass() *models.ScheduledClass {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	return &models.ScheduledClass{
		CourseID:   "course-1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1", "s2"},
		Slot: models.TimeSlot{
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			DayOfWeek: start.Weekday(),
			Capacity:  models.ClassCapacityConstraint{MaxStudents: 9, MinStudents: 2},
		},
		ContentIDs:      []string{"L1"},
		Type:            models.ClassTypeGroup,
		Status:          models.ClassStatusScheduled,
		ConfidenceScore: 0.8,
	}
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduled_classes")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	class := testScheduledClass()
	err := repo.Create(context.Background(), class)
	require.NoError(t, err)
	require.NotEmpty(t, class.ID)
	require.Equal(t, 1, class.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateDoubleBookingIsConflict(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduled_classes")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "scheduled_classes_teacher_slot_key"})

	err := repo.Create(context.Background(), testScheduledClass())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListByDateRange(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "course_id", "teacher_id", "student_ids", "slot_start", "slot_end", "location",
		"max_students", "min_students", "current_enrollment", "content_ids", "type", "status",
		"confidence_score", "version", "metadata", "created_at", "updated_at",
	}).AddRow(
		"class-1", "course-1", "t1", []byte(`["s1","s2"]`), start, start.Add(30*time.Minute), nil,
		9, 2, 2, []byte(`["L1"]`), "group", "scheduled",
		0.8, 1, []byte(`{}`), start, start,
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(start.Add(-time.Hour), start.Add(time.Hour)).
		WillReturnRows(rows)

	classes, err := repo.ListByDateRange(context.Background(), start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, []string{"s1", "s2"}, classes[0].StudentIDs)
	require.Equal(t, []string{"L1"}, classes[0].ContentIDs)
	require.Equal(t, models.ClassStatusScheduled, classes[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCommitEnrollment(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT current_enrollment, max_students, version FROM scheduled_classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_enrollment", "max_students", "version"}).AddRow(2, 9, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduled_classes")).
		WithArgs([]byte(`["s1","s2","s3"]`), 3, sqlmock.AnyArg(), "class-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CommitEnrollment(context.Background(), "class-1", 3, []string{"s1", "s2", "s3"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCommitEnrollmentStaleVersion(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_enrollment", "max_students", "version"}).AddRow(2, 9, 4))
	mock.ExpectRollback()

	err := repo.CommitEnrollment(context.Background(), "class-1", 3, []string{"s1", "s2", "s3"})
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCommitEnrollmentOverCapacity(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"current_enrollment", "max_students", "version"}).AddRow(2, 2, 3))
	mock.ExpectRollback()

	err := repo.CommitEnrollment(context.Background(), "class-1", 3, []string{"s1", "s2", "s3"})
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrCapacityExceeded))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCommitEnrollmentMissingClass(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"current_enrollment", "max_students", "version"}))
	mock.ExpectRollback()

	err := repo.CommitEnrollment(context.Background(), "ghost", 1, []string{"s1"})
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryUpdateStatusRejectsIllegalTransition(t *testing.T) {
	db, _, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	err := repo.UpdateStatus(context.Background(), "class-1", models.ClassStatusCancelled, models.ClassStatusConfirmed)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBookingRepositoryUpdateStatusStaleRead(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduled_classes SET status")).
		WithArgs("confirmed", sqlmock.AnyArg(), "class-1", "scheduled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "class-1", models.ClassStatusScheduled, models.ClassStatusConfirmed)
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryDeleteRequiresCancelledStatus(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scheduled_classes WHERE id = $1 AND status = 'cancelled'")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "class-1")
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}
