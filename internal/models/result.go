package models

import (
	"time"

	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

// RecommendationType classifies advisory output for unscheduled work.
type RecommendationType string

const (
	RecommendationAlternativeSlot   RecommendationType = "alternative_slot"
	RecommendationWaitlist          RecommendationType = "waitlist"
	RecommendationContentAdjustment RecommendationType = "content_adjustment"
	RecommendationSplitClass        RecommendationType = "split_class"
	RecommendationRetryLater        RecommendationType = "retry_later"
)

// RecommendedAction is the concrete next step attached to a recommendation.
type RecommendedAction struct {
	Operation SchedulingOperation `json:"operation"`
	Slot      *TimeSlot           `json:"slot,omitempty"`
	TeacherID string              `json:"teacher_id,omitempty"`
	NotBefore *time.Time          `json:"not_before,omitempty"`
}

// SchedulingRecommendation explains what to do about anything the engine
// could not schedule. Nothing is silently dropped.
type SchedulingRecommendation struct {
	Type       RecommendationType `json:"type"`
	StudentIDs []string           `json:"student_ids"`
	ContentIDs []string           `json:"content_ids,omitempty"`
	Confidence float64            `json:"confidence"`
	Benefits   []string           `json:"benefits,omitempty"`
	Drawbacks  []string           `json:"drawbacks,omitempty"`
	Action     RecommendedAction  `json:"action"`
}

// SchedulingMetrics aggregates per-request processing counters.
type SchedulingMetrics struct {
	CandidatesGenerated    int           `json:"candidates_generated"`
	CandidatesDiscarded    int           `json:"candidates_discarded"`
	OptimizationIterations int           `json:"optimization_iterations"`
	ConflictsDetected      int           `json:"conflicts_detected"`
	ConflictsResolved      int           `json:"conflicts_resolved"`
	ProcessingTime         time.Duration `json:"processing_time"`
}

// SchedulingResult is the terminal, immutable output of one request.
type SchedulingResult struct {
	RequestID           string                     `json:"request_id"`
	Success             bool                       `json:"success"`
	Status              RequestStatus              `json:"status"`
	Classes             []ScheduledClass           `json:"classes"`
	UnresolvedConflicts []SchedulingConflict       `json:"unresolved_conflicts,omitempty"`
	Recommendations     []SchedulingRecommendation `json:"recommendations,omitempty"`
	Metrics             SchedulingMetrics          `json:"metrics"`
	Error               *appErrors.Error           `json:"error,omitempty"`
	CreatedAt           time.Time                  `json:"created_at"`
	CompletedAt         time.Time                  `json:"completed_at"`
}

// NewFailedResult builds a failed result, guaranteeing the invariant that an
// unsuccessful result always carries either conflicts+recommendations or an
// error, never neither.
func NewFailedResult(requestID string, status RequestStatus, conflicts []SchedulingConflict, recs []SchedulingRecommendation, err *appErrors.Error) *SchedulingResult {
	if err == nil && len(conflicts) == 0 && len(recs) == 0 {
		err = appErrors.Clone(appErrors.ErrInternal, "request failed without diagnostic detail")
	}
	now := time.Now().UTC()
	return &SchedulingResult{
		RequestID:           requestID,
		Success:             false,
		Status:              status,
		UnresolvedConflicts: conflicts,
		Recommendations:     recs,
		Error:               err,
		CreatedAt:           now,
		CompletedAt:         now,
	}
}
