package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

func slotAt(day time.Time, startHour, startMin, durationMin int) models.TimeSlot {
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, time.UTC)
	return models.TimeSlot{
		ID:          start.Format("slot-2006-01-02-15-04"),
		StartTime:   start,
		EndTime:     start.Add(time.Duration(durationMin) * time.Minute),
		DayOfWeek:   start.Weekday(),
		IsAvailable: true,
		Capacity:    models.ClassCapacityConstraint{MaxStudents: 9},
	}
}

func testConstraints() models.SchedulingConstraints {
	return models.SchedulingConstraints{
		MaxStudentsPerClass:            9,
		MinStudentsForGroupClass:       2,
		MaxConcurrentClassesPerTeacher: 1,
		MaxClassesPerDayPerStudent:     3,
		MinBreakBetweenClasses:         15 * time.Minute,
		MinAdvanceBookingHours:         2,
		MaxAdvanceBookingDays:          30,
	}
}

func studentList(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	return ids
}

func TestConstraintServiceAcceptsValidCandidate(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 0, 30),
		Type:       models.ClassTypeIndividual,
		Status:     models.ClassStatusScheduled,
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{Now: now})
	require.True(t, ok)
	assert.Empty(t, violations)
}

func TestConstraintServiceEvaluateIsIdempotent(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1", "s2"},
		Slot:       slotAt(now, 12, 0, 30),
		Type:       models.ClassTypeGroup,
		Status:     models.ClassStatusScheduled,
	}
	ectx := EvaluationContext{Now: now}

	first, _ := svc.Evaluate(candidate, testConstraints(), ectx)
	second, _ := svc.Evaluate(candidate, testConstraints(), ectx)
	assert.Equal(t, first, second)
	assert.True(t, second)
}

func TestConstraintServiceGroupCapIsNeverWaivable(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: studentList(10),
		Slot:       slotAt(now, 12, 0, 30),
		Type:       models.ClassTypeGroup,
	}
	ectx := EvaluationContext{
		Now: now,
		Overrides: []models.ManualOverride{
			{Type: models.OverrideTeacherLoad, ApprovedBy: "admin"},
			{Type: models.OverrideStudentLoad, ApprovedBy: "admin"},
		},
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), ectx)
	require.False(t, ok)
	require.Len(t, violations, 1)
	assert.Equal(t, "capacity", violations[0].Constraint)
	assert.Equal(t, models.SeverityCritical, violations[0].Severity)
	assert.False(t, violations[0].Waived)
}

func TestConstraintServiceTeacherLoad(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	existing := models.ScheduledClass{
		ID:        "existing",
		TeacherID: "t1",
		Slot:      slotAt(now, 12, 0, 60),
		Status:    models.ClassStatusConfirmed,
	}
	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 30, 30),
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:              now,
		ExistingBookings: []models.ScheduledClass{existing},
	})
	require.False(t, ok)
	require.NotEmpty(t, violations)
	assert.Equal(t, "teacher_load", violations[0].Constraint)
}

func TestConstraintServiceTeacherLoadOverrideIsRecorded(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	existing := models.ScheduledClass{
		ID:        "existing",
		TeacherID: "t1",
		Slot:      slotAt(now, 12, 0, 60),
		Status:    models.ClassStatusScheduled,
	}
	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 30, 30),
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:              now,
		ExistingBookings: []models.ScheduledClass{existing},
		Overrides:        []models.ManualOverride{{Type: models.OverrideTeacherLoad, Reason: "substitute", ApprovedBy: "admin"}},
	})
	require.True(t, ok)
	require.Len(t, violations, 1)
	assert.True(t, violations[0].Waived)
	assert.Equal(t, "admin", violations[0].WaivedBy)
}

func TestConstraintServiceTouchingSlotsDoNotCountAsConcurrent(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	// Back-to-back with exactly the minimum break after the first class.
	existing := models.ScheduledClass{
		ID:        "existing",
		TeacherID: "t1",
		Slot:      slotAt(now, 12, 0, 30),
		Status:    models.ClassStatusConfirmed,
	}
	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 45, 30),
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:              now,
		ExistingBookings: []models.ScheduledClass{existing},
	})
	require.True(t, ok, "violations: %+v", violations)
}

func TestConstraintServiceBreakSpacing(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	existing := models.ScheduledClass{
		ID:         "existing",
		TeacherID:  "t2",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 0, 30),
		Status:     models.ClassStatusConfirmed,
	}
	// Only ten minutes after the student's previous class ends.
	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 40, 30),
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:              now,
		ExistingBookings: []models.ScheduledClass{existing},
	})
	require.False(t, ok)
	require.NotEmpty(t, violations)
	assert.Equal(t, "break_spacing", violations[0].Constraint)
	assert.Contains(t, violations[0].Message, "student s1")
}

func TestConstraintServiceBookingWindow(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

	tooSoon := models.ScheduledClass{
		ID:         "soon",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 0, 30),
	}
	ok, violations := svc.Evaluate(tooSoon, testConstraints(), EvaluationContext{Now: now})
	require.False(t, ok)
	assert.Equal(t, "booking_window", violations[0].Constraint)

	tooFar := tooSoon
	tooFar.ID = "far"
	tooFar.Slot = slotAt(now.AddDate(0, 0, 45), 12, 0, 30)
	ok, violations = svc.Evaluate(tooFar, testConstraints(), EvaluationContext{Now: now})
	require.False(t, ok)
	assert.Equal(t, "booking_window", violations[0].Constraint)
}

func TestConstraintServiceBlockedDate(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	holiday := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	constraints := testConstraints()
	constraints.BlockedDates = []time.Time{holiday}

	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(holiday, 12, 0, 30),
	}
	ok, violations := svc.Evaluate(candidate, constraints, EvaluationContext{Now: now})
	require.False(t, ok)
	assert.Equal(t, "booking_window", violations[0].Constraint)
	assert.Contains(t, violations[0].Message, "blocked")
}

func TestConstraintServiceDeclaredAvailability(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 12, 0, 30),
	}
	availability := models.TeacherAvailability{
		TeacherID:      "t1",
		AvailableSlots: []models.TimeSlot{slotAt(now, 15, 0, 120)},
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:          now,
		Availability: map[string]models.TeacherAvailability{"t1": availability},
	})
	require.False(t, ok)
	assert.Equal(t, "availability", violations[0].Constraint)
}

func TestConstraintServiceStudentDailyLoad(t *testing.T) {
	svc := NewConstraintService(zap.NewNop())
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

	var existing []models.ScheduledClass
	for i := 0; i < 3; i++ {
		existing = append(existing, models.ScheduledClass{
			ID:         string(rune('x' + i)),
			TeacherID:  "t2",
			StudentIDs: []string{"s1"},
			Slot:       slotAt(now, 10+2*i, 0, 30),
			Status:     models.ClassStatusConfirmed,
		})
	}
	candidate := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slotAt(now, 17, 0, 30),
	}

	ok, violations := svc.Evaluate(candidate, testConstraints(), EvaluationContext{
		Now:              now,
		ExistingBookings: existing,
	})
	require.False(t, ok)
	assert.Equal(t, "student_load", violations[0].Constraint)
}
