package models

import "time"

// SchedulingOperation discriminates what a request asks the engine to do.
type SchedulingOperation string

const (
	OperationAutoSchedule       SchedulingOperation = "auto_schedule"
	OperationReschedule         SchedulingOperation = "reschedule"
	OperationConflictResolution SchedulingOperation = "conflict_resolution"
	OperationOptimization       SchedulingOperation = "optimization"
	OperationContentSync        SchedulingOperation = "content_sync"
	OperationManualOverride     SchedulingOperation = "manual_override"
)

// Valid reports whether the operation is one of the known variants.
func (o SchedulingOperation) Valid() bool {
	switch o {
	case OperationAutoSchedule, OperationReschedule, OperationConflictResolution,
		OperationOptimization, OperationContentSync, OperationManualOverride:
		return true
	}
	return false
}

// RequestPriority orders concurrent requests.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityNormal RequestPriority = "normal"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

// RequestStatus tracks a request through the orchestrator state machine.
type RequestStatus string

const (
	StatusIdle       RequestStatus = "idle"
	StatusAnalyzing  RequestStatus = "analyzing"
	StatusProcessing RequestStatus = "processing"
	StatusOptimizing RequestStatus = "optimizing"
	StatusValidating RequestStatus = "validating"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether the status ends the request lifecycle.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// OverrideType names the constraint check a manual override bypasses.
type OverrideType string

const (
	OverrideTeacherLoad   OverrideType = "teacher_load"
	OverrideStudentLoad   OverrideType = "student_load"
	OverrideBreakSpacing  OverrideType = "break_spacing"
	OverrideBookingWindow OverrideType = "booking_window"
	OverrideMinGroupSize  OverrideType = "min_group_size"
	OverrideAvailability  OverrideType = "availability"
)

// ManualOverride authorizes bypassing one constraint check. Overrides are
// recorded on the resulting class metadata for audit. The global group-size
// cap cannot be overridden.
type ManualOverride struct {
	Type       OverrideType `json:"type"`
	Reason     string       `json:"reason"`
	ApprovedBy string       `json:"approved_by"`
}

// WorkingHours bounds bookable minutes within a day.
type WorkingHours struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// SchedulingConstraints is the hard-constraint set a candidate must satisfy.
type SchedulingConstraints struct {
	MaxStudentsPerClass            int            `json:"max_students_per_class"`
	MinStudentsForGroupClass       int            `json:"min_students_for_group_class"`
	MaxConcurrentClassesPerTeacher int            `json:"max_concurrent_classes_per_teacher"`
	MaxClassesPerDayPerStudent     int            `json:"max_classes_per_day_per_student"`
	MinBreakBetweenClasses         time.Duration  `json:"min_break_between_classes"`
	MinAdvanceBookingHours         int            `json:"min_advance_booking_hours"`
	MaxAdvanceBookingDays          int            `json:"max_advance_booking_days"`
	BlockedDates                   []time.Time    `json:"blocked_dates,omitempty"`
	AvailableDays                  []time.Weekday `json:"available_days,omitempty"`
	WorkingHours                   WorkingHours   `json:"working_hours"`
}

// ConstraintOverrides carries per-request constraint replacements. Nil fields
// keep the engine defaults.
type ConstraintOverrides struct {
	MaxStudentsPerClass        *int           `json:"max_students_per_class,omitempty"`
	MinStudentsForGroupClass   *int           `json:"min_students_for_group_class,omitempty"`
	MaxClassesPerDayPerStudent *int           `json:"max_classes_per_day_per_student,omitempty"`
	MinBreakBetweenClasses     *time.Duration `json:"min_break_between_classes,omitempty"`
	MinAdvanceBookingHours     *int           `json:"min_advance_booking_hours,omitempty"`
	MaxAdvanceBookingDays      *int           `json:"max_advance_booking_days,omitempty"`
	BlockedDates               []time.Time    `json:"blocked_dates,omitempty"`
	AvailableDays              []time.Weekday `json:"available_days,omitempty"`
}

// MaxGroupClassSize mirrors the non-configurable global enrollment cap.
const MaxGroupClassSize = 9

// Merge applies the overrides on top of the base constraints. The group cap
// of MaxGroupClassSize is enforced regardless of overrides.
func (c SchedulingConstraints) Merge(o *ConstraintOverrides) SchedulingConstraints {
	merged := c
	if o != nil {
		if o.MaxStudentsPerClass != nil {
			merged.MaxStudentsPerClass = *o.MaxStudentsPerClass
		}
		if o.MinStudentsForGroupClass != nil {
			merged.MinStudentsForGroupClass = *o.MinStudentsForGroupClass
		}
		if o.MaxClassesPerDayPerStudent != nil {
			merged.MaxClassesPerDayPerStudent = *o.MaxClassesPerDayPerStudent
		}
		if o.MinBreakBetweenClasses != nil {
			merged.MinBreakBetweenClasses = *o.MinBreakBetweenClasses
		}
		if o.MinAdvanceBookingHours != nil {
			merged.MinAdvanceBookingHours = *o.MinAdvanceBookingHours
		}
		if o.MaxAdvanceBookingDays != nil {
			merged.MaxAdvanceBookingDays = *o.MaxAdvanceBookingDays
		}
		if len(o.BlockedDates) > 0 {
			merged.BlockedDates = o.BlockedDates
		}
		if len(o.AvailableDays) > 0 {
			merged.AvailableDays = o.AvailableDays
		}
	}
	if merged.MaxStudentsPerClass <= 0 || merged.MaxStudentsPerClass > MaxGroupClassSize {
		merged.MaxStudentsPerClass = MaxGroupClassSize
	}
	return merged
}

// DayAllowed reports whether the weekday is bookable.
func (c SchedulingConstraints) DayAllowed(day time.Weekday) bool {
	if len(c.AvailableDays) == 0 {
		return true
	}
	for _, d := range c.AvailableDays {
		if d == day {
			return true
		}
	}
	return false
}

// DateBlocked reports whether the date matches a blocked calendar day.
func (c SchedulingConstraints) DateBlocked(t time.Time) bool {
	y, m, d := t.Date()
	for _, blocked := range c.BlockedDates {
		by, bm, bd := blocked.Date()
		if y == by && m == bm && d == bd {
			return true
		}
	}
	return false
}

// SchedulingRequest enters the orchestrator and is immutable once submitted.
// Resubmitting supersedes the earlier request.
type SchedulingRequest struct {
	ID               string               `json:"id"`
	Operation        SchedulingOperation  `json:"operation"`
	Priority         RequestPriority      `json:"priority"`
	StudentIDs       []string             `json:"student_ids"`
	CourseID         string               `json:"course_id"`
	PreferredSlots   []TimeSlot           `json:"preferred_slots,omitempty"`
	PreferredContent []string             `json:"preferred_content,omitempty"`
	Overrides        *ConstraintOverrides `json:"overrides,omitempty"`
	ManualOverrides  []ManualOverride     `json:"manual_overrides,omitempty"`
	RequestedBy      string               `json:"requested_by"`
	SubmittedAt      time.Time            `json:"submitted_at"`
}

// HasOverride reports whether a manual override of the given type exists.
func (r *SchedulingRequest) HasOverride(t OverrideType) bool {
	for _, o := range r.ManualOverrides {
		if o.Type == t {
			return true
		}
	}
	return false
}
