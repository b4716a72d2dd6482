package models

import "time"

// ConflictType discriminates detected scheduling conflicts.
type ConflictType string

const (
	ConflictTimeOverlap        ConflictType = "time_overlap"
	ConflictCapacityExceeded   ConflictType = "capacity_exceeded"
	ConflictTeacherUnavailable ConflictType = "teacher_unavailable"
	ConflictStudentUnavailable ConflictType = "student_unavailable"
	ConflictContentMismatch    ConflictType = "content_mismatch"
	ConflictResource           ConflictType = "resource_conflict"
)

// ConflictSeverity orders conflicts by blocking impact.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// SchedulingConflict is first-class data, not an error: it is returned
// alongside partial success.
type SchedulingConflict struct {
	ID          string               `json:"id"`
	Type        ConflictType         `json:"type"`
	Severity    ConflictSeverity     `json:"severity"`
	ClassIDs    []string             `json:"class_ids"`
	TeacherIDs  []string             `json:"teacher_ids,omitempty"`
	StudentIDs  []string             `json:"student_ids,omitempty"`
	ContentIDs  []string             `json:"content_ids,omitempty"`
	Description string               `json:"description"`
	Resolutions []ConflictResolution `json:"resolutions,omitempty"`
	DetectedAt  time.Time            `json:"detected_at"`
}

// ResolutionType discriminates candidate conflict resolutions.
type ResolutionType string

const (
	ResolutionReschedule      ResolutionType = "reschedule"
	ResolutionReassignTeacher ResolutionType = "reassign_teacher"
	ResolutionSplitClass      ResolutionType = "split_class"
	ResolutionMergeClasses    ResolutionType = "merge_classes"
	ResolutionWaitlist        ResolutionType = "waitlist_students"
	ResolutionAdjustContent   ResolutionType = "adjust_content"
	ResolutionDeferContent    ResolutionType = "defer_content"
)

// ResolutionImpact quantifies the cost of applying a resolution.
type ResolutionImpact struct {
	AffectedStudents  int     `json:"affected_students"`
	AffectedTeachers  int     `json:"affected_teachers"`
	DisruptionLevel   int     `json:"disruption_level"` // 1-10
	SatisfactionDelta float64 `json:"satisfaction_delta"`
}

// ConflictResolution is one candidate way out of a conflict. Resolutions
// with required approvals are surfaced but never auto-applied.
type ConflictResolution struct {
	ID                          string           `json:"id"`
	Type                        ResolutionType   `json:"type"`
	Description                 string           `json:"description"`
	FeasibilityScore            float64          `json:"feasibility_score"`
	EstimatedImplementationTime time.Duration    `json:"estimated_implementation_time"`
	Impact                      ResolutionImpact `json:"impact"`
	RequiredApprovals           []string         `json:"required_approvals,omitempty"`
	TargetClassID               string           `json:"target_class_id,omitempty"`
	ProposedSlot                *TimeSlot        `json:"proposed_slot,omitempty"`
	ProposedTeacherID           string           `json:"proposed_teacher_id,omitempty"`
}

// AutoApplicable reports whether the resolution may be applied without
// human approval at the given threshold.
func (r ConflictResolution) AutoApplicable(threshold float64) bool {
	return len(r.RequiredApprovals) == 0 && r.FeasibilityScore >= threshold
}
