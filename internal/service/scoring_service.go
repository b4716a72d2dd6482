package service

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

// ScoringWeights weight the soft-score dimensions. Weights need not sum to
// one; the total is normalized by their sum.
type ScoringWeights struct {
	ContentProgression float64 `json:"content_progression"`
	AvailabilityFit    float64 `json:"availability_fit"`
	ClassSize          float64 `json:"class_size"`
	PaceMatch          float64 `json:"pace_match"`
	SkillAlignment     float64 `json:"skill_alignment"`
	Continuity         float64 `json:"continuity"`
	Utilization        float64 `json:"utilization"`
}

// DefaultScoringWeights favors content progression and availability fit.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ContentProgression: 0.25,
		AvailabilityFit:    0.20,
		ClassSize:          0.15,
		PaceMatch:          0.15,
		SkillAlignment:     0.10,
		Continuity:         0.10,
		Utilization:        0.05,
	}
}

func (w ScoringWeights) sum() float64 {
	return w.ContentProgression + w.AvailabilityFit + w.ClassSize +
		w.PaceMatch + w.SkillAlignment + w.Continuity + w.Utilization
}

// ScoringContext is the per-student state a candidate is scored against.
type ScoringContext struct {
	Progress       *models.StudentProgress
	NextContent    []models.LearningContent
	Catalog        map[string]models.LearningContent
	TeacherPattern []models.TimeSlot
}

// SubScores breaks the total down per dimension, each clamped to [0,1].
type SubScores struct {
	ContentProgression float64 `json:"content_progression"`
	AvailabilityFit    float64 `json:"availability_fit"`
	ClassSize          float64 `json:"class_size"`
	PaceMatch          float64 `json:"pace_match"`
	SkillAlignment     float64 `json:"skill_alignment"`
	Continuity         float64 `json:"continuity"`
	Utilization        float64 `json:"utilization"`
}

// ScoredCandidate pairs a candidate with its computed score.
type ScoredCandidate struct {
	Class models.ScheduledClass `json:"class"`
	Total float64               `json:"total"`
	Subs  SubScores             `json:"sub_scores"`
}

// ScoringService ranks already-valid candidates. Scoring is deterministic:
// the same candidate, weights and context always yield the same score.
type ScoringService struct {
	logger *zap.Logger
}

// NewScoringService constructs the scorer.
func NewScoringService(logger *zap.Logger) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{logger: logger}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score computes the weighted soft score for a candidate in [0,1]. Each
// dimension is clamped before weighting so one bad dimension cannot drag the
// total negative.
func (s *ScoringService) Score(candidate models.ScheduledClass, weights ScoringWeights, sctx ScoringContext) ScoredCandidate {
	subs := SubScores{
		ContentProgression: clamp01(contentProgressionScore(candidate, sctx)),
		AvailabilityFit:    clamp01(availabilityFitScore(candidate, sctx)),
		ClassSize:          clamp01(classSizeScore(candidate, sctx)),
		PaceMatch:          clamp01(paceMatchScore(candidate, sctx)),
		SkillAlignment:     clamp01(skillAlignmentScore(candidate, sctx)),
		Continuity:         clamp01(continuityScore(candidate, sctx)),
		Utilization:        clamp01(utilizationScore(candidate)),
	}

	total := weights.ContentProgression*subs.ContentProgression +
		weights.AvailabilityFit*subs.AvailabilityFit +
		weights.ClassSize*subs.ClassSize +
		weights.PaceMatch*subs.PaceMatch +
		weights.SkillAlignment*subs.SkillAlignment +
		weights.Continuity*subs.Continuity +
		weights.Utilization*subs.Utilization
	if wsum := weights.sum(); wsum > 0 {
		total /= wsum
	}

	return ScoredCandidate{Class: candidate, Total: clamp01(total), Subs: subs}
}

// Rank sorts scored candidates best-first with deterministic tie-breaks:
// higher total, then higher class-size sub-score, then earlier slot, then
// lower candidate ID.
func (s *ScoringService) Rank(candidates []ScoredCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Subs.ClassSize != b.Subs.ClassSize {
			return a.Subs.ClassSize > b.Subs.ClassSize
		}
		if !a.Class.Slot.StartTime.Equal(b.Class.Slot.StartTime) {
			return a.Class.Slot.StartTime.Before(b.Class.Slot.StartTime)
		}
		return a.Class.ID < b.Class.ID
	})
}

// contentProgressionScore is the fraction of the student's next unlearned
// items covered by the candidate's content list.
func contentProgressionScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	if len(sctx.NextContent) == 0 {
		return 0
	}
	offered := make(map[string]struct{}, len(candidate.ContentIDs))
	for _, id := range candidate.ContentIDs {
		offered[id] = struct{}{}
	}
	covered := 0
	for _, content := range sctx.NextContent {
		if _, ok := offered[content.ID]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(sctx.NextContent))
}

// availabilityFitScore measures slot overlap with the student's and
// teacher's preferred times.
func availabilityFitScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	var preferred []models.TimeSlot
	if sctx.Progress != nil {
		preferred = append(preferred, sctx.Progress.PreferredSlots...)
	}
	preferred = append(preferred, sctx.TeacherPattern...)
	if len(preferred) == 0 {
		return 0.5
	}
	best := 0.0
	duration := candidate.Slot.Duration()
	if duration <= 0 {
		return 0
	}
	for _, slot := range preferred {
		overlap := overlapDuration(candidate.Slot, slot)
		if ratio := overlap.Seconds() / duration.Seconds(); ratio > best {
			best = ratio
		}
	}
	return best
}

func overlapDuration(a, b models.TimeSlot) time.Duration {
	start := a.StartTime
	if b.StartTime.After(start) {
		start = b.StartTime
	}
	end := a.EndTime
	if b.EndTime.Before(end) {
		end = b.EndTime
	}
	if end.After(start) {
		return end.Sub(start)
	}
	return 0
}

// classSizeScore is the inverse distance between the class size after this
// enrollment and the student's optimal class size.
func classSizeScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	optimal := 1
	if sctx.Progress != nil && sctx.Progress.OptimalClassSize > 0 {
		optimal = sctx.Progress.OptimalClassSize
	}
	size := len(candidate.StudentIDs)
	if size == 0 {
		size = candidate.Slot.Capacity.CurrentEnrollment + 1
	}
	distance := math.Abs(float64(size - optimal))
	return 1.0 / (1.0 + distance)
}

// paceMatchScore compares the student's pace factor against the class's
// content density (content duration over slot duration).
func paceMatchScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	if sctx.Progress == nil {
		return 0.5
	}
	slotMinutes := candidate.Slot.Duration().Minutes()
	if slotMinutes <= 0 {
		return 0
	}
	contentMinutes := 0.0
	for _, id := range candidate.ContentIDs {
		if content, ok := sctx.Catalog[id]; ok {
			contentMinutes += content.EstimatedDuration.Minutes()
		}
	}
	if contentMinutes == 0 {
		return 0.5
	}
	density := contentMinutes / slotMinutes
	return 1.0 - math.Min(1.0, math.Abs(density-sctx.Progress.Pace.Factor()))
}

// skillAlignmentScore is the inverted average absolute gap between the
// student's skill levels and the content's required levels.
func skillAlignmentScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	if sctx.Progress == nil || len(sctx.Progress.SkillLevels) == 0 {
		return 0.5
	}
	totalGap, requirements := 0.0, 0
	for _, id := range candidate.ContentIDs {
		content, ok := sctx.Catalog[id]
		if !ok {
			continue
		}
		for _, req := range content.RequiredSkills {
			have := sctx.Progress.SkillLevels[req.Skill]
			totalGap += math.Abs(float64(have - req.Level))
			requirements++
		}
	}
	if requirements == 0 {
		return 0.5
	}
	// Skill levels live on a 1-10 scale, so normalize the gap by 9.
	return 1.0 - math.Min(1.0, totalGap/float64(requirements)/9.0)
}

// continuityScore rewards reusing a teacher the student has worked with.
func continuityScore(candidate models.ScheduledClass, sctx ScoringContext) float64 {
	if sctx.Progress == nil {
		return 0
	}
	for _, teacherID := range sctx.Progress.RecentTeacherIDs {
		if teacherID == candidate.TeacherID {
			return 1
		}
	}
	return 0
}

// utilizationScore rewards filling partially-enrolled classes over opening
// empty ones.
func utilizationScore(candidate models.ScheduledClass) float64 {
	max := candidate.Slot.Capacity.MaxStudents
	if max <= 0 {
		return 0
	}
	return float64(candidate.Slot.Capacity.CurrentEnrollment) / float64(max)
}
