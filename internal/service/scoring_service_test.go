package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

func scoringFixture() (models.ScheduledClass, ScoringContext) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot := slotAt(day, 10, 0, 30)

	contents := map[string]models.LearningContent{
		"L1": {ID: "L1", CourseID: "course-1", UnitNumber: 1, LessonNumber: 1, EstimatedDuration: 25 * time.Minute},
		"L2": {ID: "L2", CourseID: "course-1", UnitNumber: 1, LessonNumber: 2, Prerequisites: []string{"L1"}, EstimatedDuration: 25 * time.Minute},
	}
	progress := &models.StudentProgress{
		StudentID:        "s1",
		CourseID:         "course-1",
		UnlearnedContent: []string{"L1", "L2"},
		Pace:             models.PaceModerate,
		OptimalClassSize: 1,
		PreferredSlots:   []models.TimeSlot{slotAt(day, 10, 0, 60)},
		RecentTeacherIDs: []string{"t1"},
	}

	candidate := models.ScheduledClass{
		ID:         "cand-1",
		CourseID:   "course-1",
		TeacherID:  "t1",
		StudentIDs: []string{"s1"},
		Slot:       slot,
		ContentIDs: []string{"L1"},
		Type:       models.ClassTypeIndividual,
	}
	return candidate, ScoringContext{
		Progress:    progress,
		NextContent: []models.LearningContent{contents["L1"], contents["L2"]},
		Catalog:     contents,
	}
}

func TestScoringServiceIsDeterministic(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	candidate, sctx := scoringFixture()
	weights := DefaultScoringWeights()

	first := svc.Score(candidate, weights, sctx)
	for i := 0; i < 10; i++ {
		again := svc.Score(candidate, weights, sctx)
		require.Equal(t, first, again)
	}
}

func TestScoringServiceTotalStaysInUnitRange(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	candidate, sctx := scoringFixture()

	scored := svc.Score(candidate, DefaultScoringWeights(), sctx)
	assert.GreaterOrEqual(t, scored.Total, 0.0)
	assert.LessOrEqual(t, scored.Total, 1.0)
	assert.Greater(t, scored.Total, 0.0)
}

func TestScoringServiceContentProgression(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	candidate, sctx := scoringFixture()

	scored := svc.Score(candidate, DefaultScoringWeights(), sctx)
	// One of the two next items is covered.
	assert.InDelta(t, 0.5, scored.Subs.ContentProgression, 1e-9)

	candidate.ContentIDs = []string{"L1", "L2"}
	scored = svc.Score(candidate, DefaultScoringWeights(), sctx)
	assert.InDelta(t, 1.0, scored.Subs.ContentProgression, 1e-9)
}

func TestScoringServiceContinuityPrefersRecentTeacher(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	candidate, sctx := scoringFixture()

	withContinuity := svc.Score(candidate, DefaultScoringWeights(), sctx)

	candidate.TeacherID = "t-new"
	withoutContinuity := svc.Score(candidate, DefaultScoringWeights(), sctx)

	assert.Greater(t, withContinuity.Total, withoutContinuity.Total)
	assert.Equal(t, 1.0, withContinuity.Subs.Continuity)
	assert.Equal(t, 0.0, withoutContinuity.Subs.Continuity)
}

func TestScoringServiceUtilizationFavorsPartialClasses(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	candidate, sctx := scoringFixture()

	candidate.Slot.Capacity = models.ClassCapacityConstraint{MaxStudents: 9, CurrentEnrollment: 0}
	fresh := svc.Score(candidate, DefaultScoringWeights(), sctx)

	candidate.Slot.Capacity.CurrentEnrollment = 5
	partial := svc.Score(candidate, DefaultScoringWeights(), sctx)

	assert.Greater(t, partial.Subs.Utilization, fresh.Subs.Utilization)
}

func TestScoringServiceRankTieBreaks(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	early := ScoredCandidate{
		Class: models.ScheduledClass{ID: "b", Slot: slotAt(day, 10, 0, 30)},
		Total: 0.7,
	}
	late := ScoredCandidate{
		Class: models.ScheduledClass{ID: "a", Slot: slotAt(day, 14, 0, 30)},
		Total: 0.7,
	}
	sameSlotLowerID := ScoredCandidate{
		Class: models.ScheduledClass{ID: "a", Slot: slotAt(day, 10, 0, 30)},
		Total: 0.7,
	}
	winner := ScoredCandidate{
		Class: models.ScheduledClass{ID: "z", Slot: slotAt(day, 16, 0, 30)},
		Total: 0.9,
	}

	ranked := []ScoredCandidate{late, early, winner, sameSlotLowerID}
	svc.Rank(ranked)

	require.Len(t, ranked, 4)
	assert.Equal(t, "z", ranked[0].Class.ID)
	assert.Equal(t, "a", ranked[1].Class.ID)
	assert.Equal(t, "b", ranked[2].Class.ID)
	assert.True(t, ranked[1].Class.Slot.StartTime.Equal(ranked[2].Class.Slot.StartTime))
}

func TestScoringServiceClassSizeSubScoreBreaksTies(t *testing.T) {
	svc := NewScoringService(zap.NewNop())
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	better := ScoredCandidate{
		Class: models.ScheduledClass{ID: "b", Slot: slotAt(day, 10, 0, 30)},
		Total: 0.7,
		Subs:  SubScores{ClassSize: 1.0},
	}
	worse := ScoredCandidate{
		Class: models.ScheduledClass{ID: "a", Slot: slotAt(day, 9, 0, 30)},
		Total: 0.7,
		Subs:  SubScores{ClassSize: 0.5},
	}

	ranked := []ScoredCandidate{worse, better}
	svc.Rank(ranked)
	assert.Equal(t, "b", ranked[0].Class.ID)
}
