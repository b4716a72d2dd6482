package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

// Violation details one failed (or waived) hard-constraint check.
type Violation struct {
	Constraint string                  `json:"constraint"`
	Severity   models.ConflictSeverity `json:"severity"`
	Message    string                  `json:"message"`
	Waived     bool                    `json:"waived"`
	WaivedBy   string                  `json:"waived_by,omitempty"`
}

// EvaluationContext carries the shared state a candidate is checked against.
type EvaluationContext struct {
	Now              time.Time
	ExistingBookings []models.ScheduledClass
	Availability     map[string]models.TeacherAvailability
	Overrides        []models.ManualOverride
}

func (c EvaluationContext) override(t models.OverrideType) *models.ManualOverride {
	for i := range c.Overrides {
		if c.Overrides[i].Type == t {
			return &c.Overrides[i]
		}
	}
	return nil
}

// ConstraintService checks candidates against the hard-constraint set.
// Evaluation is pure: all state arrives through the context.
type ConstraintService struct {
	logger *zap.Logger
}

// NewConstraintService constructs the evaluator.
func NewConstraintService(logger *zap.Logger) *ConstraintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConstraintService{logger: logger}
}

// Evaluate runs the ordered hard-constraint checks. It short-circuits on the
// first critical violation to bound cost. A manual override of matching type
// waives a check; the waiver is still reported so it can be recorded for
// audit. The global group-size cap is never waivable.
func (s *ConstraintService) Evaluate(candidate models.ScheduledClass, constraints models.SchedulingConstraints, ectx EvaluationContext) (bool, []Violation) {
	var violations []Violation

	add := func(v Violation, overrideType models.OverrideType) bool {
		if o := ectx.override(overrideType); o != nil {
			v.Waived = true
			v.WaivedBy = o.ApprovedBy
			violations = append(violations, v)
			return false
		}
		violations = append(violations, v)
		return v.Severity == models.SeverityCritical
	}

	// 1. Capacity. Exceeding the global cap is critical and unconditional.
	if len(candidate.StudentIDs) > models.MaxGroupClassSize {
		violations = append(violations, Violation{
			Constraint: "capacity",
			Severity:   models.SeverityCritical,
			Message:    fmt.Sprintf("%d students exceed the global cap of %d", len(candidate.StudentIDs), models.MaxGroupClassSize),
		})
		return false, violations
	}
	if len(candidate.StudentIDs) > constraints.MaxStudentsPerClass {
		violations = append(violations, Violation{
			Constraint: "capacity",
			Severity:   models.SeverityCritical,
			Message:    fmt.Sprintf("%d students exceed the class limit of %d", len(candidate.StudentIDs), constraints.MaxStudentsPerClass),
		})
		return false, violations
	}
	if candidate.Type == models.ClassTypeGroup && len(candidate.StudentIDs) < constraints.MinStudentsForGroupClass {
		if stop := add(Violation{
			Constraint: "min_group_size",
			Severity:   models.SeverityHigh,
			Message:    fmt.Sprintf("group class needs at least %d students, has %d", constraints.MinStudentsForGroupClass, len(candidate.StudentIDs)),
		}, models.OverrideMinGroupSize); stop {
			return false, violations
		}
	}

	// 2. Teacher concurrent load.
	maxConcurrent := constraints.MaxConcurrentClassesPerTeacher
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	concurrent := 0
	for i := range ectx.ExistingBookings {
		booking := &ectx.ExistingBookings[i]
		if booking.ID == candidate.ID || booking.Status == models.ClassStatusCancelled {
			continue
		}
		if booking.TeacherID == candidate.TeacherID && booking.Slot.Overlaps(candidate.Slot) {
			concurrent++
		}
	}
	if concurrent+1 > maxConcurrent {
		add(Violation{
			Constraint: "teacher_load",
			Severity:   models.SeverityHigh,
			Message:    fmt.Sprintf("teacher %s would teach %d concurrent classes, limit %d", candidate.TeacherID, concurrent+1, maxConcurrent),
		}, models.OverrideTeacherLoad)
	}

	// 3. Student daily load.
	if constraints.MaxClassesPerDayPerStudent > 0 {
		for _, studentID := range candidate.StudentIDs {
			daily := 0
			for i := range ectx.ExistingBookings {
				booking := &ectx.ExistingBookings[i]
				if booking.ID == candidate.ID || booking.Status == models.ClassStatusCancelled {
					continue
				}
				if booking.HasStudent(studentID) && booking.Slot.SameDay(candidate.Slot) {
					daily++
				}
			}
			if daily+1 > constraints.MaxClassesPerDayPerStudent {
				add(Violation{
					Constraint: "student_load",
					Severity:   models.SeverityHigh,
					Message:    fmt.Sprintf("student %s would have %d classes on %s, limit %d", studentID, daily+1, candidate.Slot.StartTime.Format("2006-01-02"), constraints.MaxClassesPerDayPerStudent),
				}, models.OverrideStudentLoad)
				break
			}
		}
	}

	// 4. Break spacing for everyone involved.
	if constraints.MinBreakBetweenClasses > 0 {
		if who := s.breakViolation(candidate, constraints.MinBreakBetweenClasses, ectx.ExistingBookings); who != "" {
			add(Violation{
				Constraint: "break_spacing",
				Severity:   models.SeverityMedium,
				Message:    fmt.Sprintf("%s has less than %s between consecutive classes", who, constraints.MinBreakBetweenClasses),
			}, models.OverrideBreakSpacing)
		}
	}

	// 5. Booking window.
	if msg := bookingWindowViolation(candidate.Slot, constraints, ectx.Now); msg != "" {
		add(Violation{
			Constraint: "booking_window",
			Severity:   models.SeverityMedium,
			Message:    msg,
		}, models.OverrideBookingWindow)
	}

	// 6. Declared teacher availability.
	if availability, ok := ectx.Availability[candidate.TeacherID]; ok {
		if !availability.IsAvailableAt(candidate.Slot) {
			add(Violation{
				Constraint: "availability",
				Severity:   models.SeverityMedium,
				Message:    fmt.Sprintf("teacher %s is not available at %s", candidate.TeacherID, candidate.Slot.StartTime.Format(time.RFC3339)),
			}, models.OverrideAvailability)
		}
	}

	for _, v := range violations {
		if !v.Waived {
			return false, violations
		}
	}
	return true, violations
}

// breakViolation returns who (student or teacher) lacks the minimum break
// around the candidate slot, or "" when spacing is fine. Overlapping classes
// are the time-overlap detector's concern, not a spacing issue.
func (s *ConstraintService) breakViolation(candidate models.ScheduledClass, minBreak time.Duration, bookings []models.ScheduledClass) string {
	tooClose := func(a, b models.TimeSlot) bool {
		if a.Overlaps(b) {
			return false
		}
		if a.EndTime.Before(b.StartTime) || a.EndTime.Equal(b.StartTime) {
			return b.StartTime.Sub(a.EndTime) < minBreak
		}
		return a.StartTime.Sub(b.EndTime) < minBreak
	}

	for i := range bookings {
		booking := &bookings[i]
		if booking.ID == candidate.ID || booking.Status == models.ClassStatusCancelled {
			continue
		}
		if !booking.Slot.SameDay(candidate.Slot) || !tooClose(candidate.Slot, booking.Slot) {
			continue
		}
		if booking.TeacherID == candidate.TeacherID {
			return fmt.Sprintf("teacher %s", candidate.TeacherID)
		}
		for _, studentID := range candidate.StudentIDs {
			if booking.HasStudent(studentID) {
				return fmt.Sprintf("student %s", studentID)
			}
		}
	}
	return ""
}

func bookingWindowViolation(slot models.TimeSlot, constraints models.SchedulingConstraints, now time.Time) string {
	lead := slot.StartTime.Sub(now)
	if constraints.MinAdvanceBookingHours > 0 && lead < time.Duration(constraints.MinAdvanceBookingHours)*time.Hour {
		return fmt.Sprintf("slot starts in %s, minimum advance booking is %dh", lead.Round(time.Minute), constraints.MinAdvanceBookingHours)
	}
	if constraints.MaxAdvanceBookingDays > 0 && lead > time.Duration(constraints.MaxAdvanceBookingDays)*24*time.Hour {
		return fmt.Sprintf("slot starts in %s, maximum advance booking is %dd", lead.Round(time.Hour), constraints.MaxAdvanceBookingDays)
	}
	if constraints.DateBlocked(slot.StartTime) {
		return fmt.Sprintf("date %s is blocked", slot.StartTime.Format("2006-01-02"))
	}
	if !constraints.DayAllowed(slot.StartTime.Weekday()) {
		return fmt.Sprintf("%s is not a bookable day", slot.StartTime.Weekday())
	}
	if constraints.WorkingHours.EndMinute > 0 {
		startMin := slot.MinutesFromMidnight()
		endMin := startMin + int(slot.Duration().Minutes())
		if startMin < constraints.WorkingHours.StartMinute || endMin > constraints.WorkingHours.EndMinute {
			return "slot falls outside working hours"
		}
	}
	return ""
}
