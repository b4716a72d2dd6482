package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

func TestConflictDetectorTeacherOverlap(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, Slot: slotAt(day, 10, 0, 60), Status: models.ClassStatusScheduled},
		{ID: "c2", TeacherID: "t1", StudentIDs: []string{"s2"}, Slot: slotAt(day, 10, 30, 60), Status: models.ClassStatusScheduled},
	}

	conflicts := detector.Detect(batch, DetectionContext{Now: day})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTimeOverlap, conflicts[0].Type)
	assert.Equal(t, models.SeverityHigh, conflicts[0].Severity)
	assert.ElementsMatch(t, []string{"c1", "c2"}, conflicts[0].ClassIDs)
}

func TestConflictDetectorConfirmedParticipantIsCritical(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, Slot: slotAt(day, 10, 0, 60), Status: models.ClassStatusScheduled},
	}
	existing := []models.ScheduledClass{
		{ID: "c2", TeacherID: "t1", StudentIDs: []string{"s2"}, Slot: slotAt(day, 10, 30, 60), Status: models.ClassStatusConfirmed},
	}

	conflicts := detector.Detect(batch, DetectionContext{Existing: existing, Now: day})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.SeverityCritical, conflicts[0].Severity)
}

func TestConflictDetectorTouchingEndpointsDoNotConflict(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, Slot: slotAt(day, 10, 0, 30), Status: models.ClassStatusConfirmed},
		{ID: "c2", TeacherID: "t1", StudentIDs: []string{"s1"}, Slot: slotAt(day, 10, 30, 30), Status: models.ClassStatusConfirmed},
	}

	conflicts := detector.Detect(batch, DetectionContext{Now: day})
	assert.Empty(t, conflicts)
}

func TestConflictDetectorStudentDoubleBooking(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1", "s2"}, Slot: slotAt(day, 10, 0, 60), Status: models.ClassStatusScheduled},
		{ID: "c2", TeacherID: "t2", StudentIDs: []string{"s2"}, Slot: slotAt(day, 10, 30, 60), Status: models.ClassStatusScheduled},
	}

	conflicts := detector.Detect(batch, DetectionContext{Now: day})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTimeOverlap, conflicts[0].Type)
	assert.Equal(t, []string{"s2"}, conflicts[0].StudentIDs)
}

func TestConflictDetectorCapacityExceeded(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	over := models.ScheduledClass{
		ID:         "c1",
		TeacherID:  "t1",
		StudentIDs: studentList(10),
		Slot:       slotAt(day, 10, 0, 60),
		Status:     models.ClassStatusScheduled,
	}

	conflicts := detector.Detect([]models.ScheduledClass{over}, DetectionContext{Now: day})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictCapacityExceeded, conflicts[0].Type)
	assert.Equal(t, models.SeverityHigh, conflicts[0].Severity)
}

func TestConflictDetectorTeacherUnavailable(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, Slot: slotAt(day, 10, 0, 30), Status: models.ClassStatusScheduled},
	}
	availability := map[string]models.TeacherAvailability{
		"t1": {TeacherID: "t1", AvailableSlots: []models.TimeSlot{slotAt(day, 14, 0, 120)}},
	}

	conflicts := detector.Detect(batch, DetectionContext{Availability: availability, Now: day})
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacherUnavailable, conflicts[0].Type)
	assert.Equal(t, models.SeverityMedium, conflicts[0].Severity)
}

func TestConflictDetectorContentMismatch(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, ContentIDs: []string{"L1", "L3"}, Slot: slotAt(day, 10, 0, 30), Status: models.ClassStatusScheduled},
	}
	dctx := DetectionContext{
		Progress: map[string]*models.StudentProgress{
			"s1": {StudentID: "s1", CompletedContent: []string{"L1"}},
		},
		Catalog: map[string]models.LearningContent{
			"L1": {ID: "L1"},
			"L2": {ID: "L2", Prerequisites: []string{"L1"}},
			"L3": {ID: "L3", Prerequisites: []string{"L2"}},
		},
		Now: day,
	}

	conflicts := detector.Detect(batch, dctx)
	require.Len(t, conflicts, 2)
	for _, conflict := range conflicts {
		assert.Equal(t, models.ConflictContentMismatch, conflict.Type)
		assert.Equal(t, models.SeverityLow, conflict.Severity)
	}
}

func TestConflictDetectorOrdersBySeverity(t *testing.T) {
	detector := NewConflictDetector(zap.NewNop(), nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	batch := []models.ScheduledClass{
		{ID: "c1", TeacherID: "t1", StudentIDs: []string{"s1"}, ContentIDs: []string{"L1"}, Slot: slotAt(day, 10, 0, 60), Status: models.ClassStatusConfirmed},
		{ID: "c2", TeacherID: "t1", StudentIDs: []string{"s2"}, Slot: slotAt(day, 10, 30, 60), Status: models.ClassStatusScheduled},
	}
	dctx := DetectionContext{
		Progress: map[string]*models.StudentProgress{
			"s1": {StudentID: "s1", CompletedContent: []string{"L1"}},
		},
		Catalog: map[string]models.LearningContent{"L1": {ID: "L1"}},
		Now:     day,
	}

	conflicts := detector.Detect(batch, dctx)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.SeverityCritical, conflicts[0].Severity)
	assert.Equal(t, models.SeverityLow, conflicts[1].Severity)
}
