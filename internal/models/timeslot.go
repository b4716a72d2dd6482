package models

import "time"

// ClassCapacityConstraint bounds enrollment for a slot or class.
type ClassCapacityConstraint struct {
	MaxStudents       int `db:"max_students" json:"max_students"`
	MinStudents       int `db:"min_students" json:"min_students"`
	CurrentEnrollment int `db:"current_enrollment" json:"current_enrollment"`
}

// AvailableSpots returns the remaining seats. A negative value means
// enrollment state is corrupt and must be surfaced, never clamped.
func (c ClassCapacityConstraint) AvailableSpots() int {
	return c.MaxStudents - c.CurrentEnrollment
}

// TimeSlot is a bounded time interval with availability and capacity.
type TimeSlot struct {
	ID          string                  `db:"id" json:"id"`
	StartTime   time.Time               `db:"start_time" json:"start_time"`
	EndTime     time.Time               `db:"end_time" json:"end_time"`
	DayOfWeek   time.Weekday            `db:"day_of_week" json:"day_of_week"`
	IsAvailable bool                    `db:"is_available" json:"is_available"`
	Capacity    ClassCapacityConstraint `json:"capacity"`
	Location    *string                 `db:"location" json:"location,omitempty"`
}

// Duration returns the slot length.
func (t TimeSlot) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// Valid reports whether the slot interval is well-formed.
func (t TimeSlot) Valid() bool {
	return t.StartTime.Before(t.EndTime)
}

// Overlaps reports half-open interval overlap: touching endpoints do not conflict.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	return t.StartTime.Before(other.EndTime) && other.StartTime.Before(t.EndTime)
}

// Contains reports whether the other slot lies entirely inside this one.
func (t TimeSlot) Contains(other TimeSlot) bool {
	return !other.StartTime.Before(t.StartTime) && !other.EndTime.After(t.EndTime)
}

// SameDay reports whether both slots start on the same calendar day.
func (t TimeSlot) SameDay(other TimeSlot) bool {
	y1, m1, d1 := t.StartTime.Date()
	y2, m2, d2 := other.StartTime.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// MinutesFromMidnight returns the start offset within its day.
func (t TimeSlot) MinutesFromMidnight() int {
	return t.StartTime.Hour()*60 + t.StartTime.Minute()
}

// RecurringPattern describes repeating weekly availability within an
// effective date range.
type RecurringPattern struct {
	DayOfWeek      time.Weekday `json:"day_of_week"`
	StartMinute    int          `json:"start_minute"`
	EndMinute      int          `json:"end_minute"`
	EffectiveFrom  time.Time    `json:"effective_from"`
	EffectiveUntil time.Time    `json:"effective_until"`
}

// CoversSlot reports whether the pattern covers the given slot.
func (p RecurringPattern) CoversSlot(slot TimeSlot) bool {
	if slot.StartTime.Weekday() != p.DayOfWeek {
		return false
	}
	if slot.StartTime.Before(p.EffectiveFrom) {
		return false
	}
	if !p.EffectiveUntil.IsZero() && slot.StartTime.After(p.EffectiveUntil) {
		return false
	}
	startMin := slot.MinutesFromMidnight()
	endMin := startMin + int(slot.Duration().Minutes())
	return startMin >= p.StartMinute && endMin <= p.EndMinute
}

// TeacherAvailability aggregates a teacher's bookable time. Blocked slots
// always take precedence over recurring patterns.
type TeacherAvailability struct {
	TeacherID         string             `json:"teacher_id"`
	AvailableSlots    []TimeSlot         `json:"available_slots"`
	RecurringPatterns []RecurringPattern `json:"recurring_patterns,omitempty"`
	BlockedSlots      []TimeSlot         `json:"blocked_slots,omitempty"`
}

// IsAvailableAt reports whether the teacher can take the given slot.
func (a TeacherAvailability) IsAvailableAt(slot TimeSlot) bool {
	for _, blocked := range a.BlockedSlots {
		if blocked.Overlaps(slot) {
			return false
		}
	}
	for _, available := range a.AvailableSlots {
		if available.Contains(slot) {
			return true
		}
	}
	for _, pattern := range a.RecurringPatterns {
		if pattern.CoversSlot(slot) {
			return true
		}
	}
	return false
}
