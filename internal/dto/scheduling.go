package dto

import (
	"time"

	"github.com/classly/scheduling-engine/internal/models"
)

// TimeSlotPayload is the wire form of a requested time slot.
type TimeSlotPayload struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Location  *string   `json:"location,omitempty"`
}

// ToModel converts the payload into a domain slot.
func (p TimeSlotPayload) ToModel() models.TimeSlot {
	return models.TimeSlot{
		StartTime:   p.StartTime.UTC(),
		EndTime:     p.EndTime.UTC(),
		DayOfWeek:   p.StartTime.UTC().Weekday(),
		IsAvailable: true,
		Location:    p.Location,
	}
}

// ManualOverridePayload authorizes bypassing one constraint check.
type ManualOverridePayload struct {
	Type       string `json:"type" validate:"required,oneof=teacher_load student_load break_spacing booking_window min_group_size availability"`
	Reason     string `json:"reason" validate:"required"`
	ApprovedBy string `json:"approvedBy" validate:"required"`
}

// ConstraintOverridesPayload carries per-request constraint replacements.
type ConstraintOverridesPayload struct {
	MaxStudentsPerClass        *int     `json:"maxStudentsPerClass" validate:"omitempty,min=1,max=9"`
	MinStudentsForGroupClass   *int     `json:"minStudentsForGroupClass" validate:"omitempty,min=1"`
	MaxClassesPerDayPerStudent *int     `json:"maxClassesPerDayPerStudent" validate:"omitempty,min=1"`
	MinBreakMinutes            *int     `json:"minBreakMinutes" validate:"omitempty,min=0"`
	MinAdvanceBookingHours     *int     `json:"minAdvanceBookingHours" validate:"omitempty,min=0"`
	MaxAdvanceBookingDays      *int     `json:"maxAdvanceBookingDays" validate:"omitempty,min=1"`
	BlockedDates               []string `json:"blockedDates" validate:"omitempty,dive,datetime=2006-01-02"`
	AvailableDays              []int    `json:"availableDays" validate:"omitempty,dive,min=0,max=6"`
}

// ToModel converts overrides to the domain form.
func (p *ConstraintOverridesPayload) ToModel() *models.ConstraintOverrides {
	if p == nil {
		return nil
	}
	out := &models.ConstraintOverrides{
		MaxStudentsPerClass:        p.MaxStudentsPerClass,
		MinStudentsForGroupClass:   p.MinStudentsForGroupClass,
		MaxClassesPerDayPerStudent: p.MaxClassesPerDayPerStudent,
		MinAdvanceBookingHours:     p.MinAdvanceBookingHours,
		MaxAdvanceBookingDays:      p.MaxAdvanceBookingDays,
	}
	if p.MinBreakMinutes != nil {
		d := time.Duration(*p.MinBreakMinutes) * time.Minute
		out.MinBreakBetweenClasses = &d
	}
	for _, raw := range p.BlockedDates {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			out.BlockedDates = append(out.BlockedDates, t)
		}
	}
	for _, day := range p.AvailableDays {
		out.AvailableDays = append(out.AvailableDays, time.Weekday(day))
	}
	return out
}

// SchedulingRequestPayload is the submission body for the orchestrator.
type SchedulingRequestPayload struct {
	Operation        string                      `json:"operation" validate:"required,oneof=auto_schedule reschedule conflict_resolution optimization content_sync manual_override"`
	Priority         string                      `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	StudentIDs       []string                    `json:"studentIds" validate:"required,min=1,dive,required"`
	CourseID         string                      `json:"courseId" validate:"required"`
	PreferredSlots   []TimeSlotPayload           `json:"preferredSlots" validate:"omitempty,dive"`
	PreferredContent []string                    `json:"preferredContent"`
	Overrides        *ConstraintOverridesPayload `json:"overrides" validate:"omitempty"`
	ManualOverrides  []ManualOverridePayload     `json:"manualOverrides" validate:"omitempty,dive"`
	RequestedBy      string                      `json:"requestedBy"`
}

// ToModel converts the payload into an immutable scheduling request.
func (p SchedulingRequestPayload) ToModel(id string, now time.Time) models.SchedulingRequest {
	req := models.SchedulingRequest{
		ID:               id,
		Operation:        models.SchedulingOperation(p.Operation),
		Priority:         models.RequestPriority(p.Priority),
		StudentIDs:       p.StudentIDs,
		CourseID:         p.CourseID,
		PreferredContent: p.PreferredContent,
		Overrides:        p.Overrides.ToModel(),
		RequestedBy:      p.RequestedBy,
		SubmittedAt:      now,
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	for _, slot := range p.PreferredSlots {
		req.PreferredSlots = append(req.PreferredSlots, slot.ToModel())
	}
	for _, o := range p.ManualOverrides {
		req.ManualOverrides = append(req.ManualOverrides, models.ManualOverride{
			Type:       models.OverrideType(o.Type),
			Reason:     o.Reason,
			ApprovedBy: o.ApprovedBy,
		})
	}
	return req
}

// AsyncSubmissionResponse returns the handle for polling.
type AsyncSubmissionResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// RequestStatusResponse reports request progress or the final result.
type RequestStatusResponse struct {
	RequestID string                   `json:"requestId"`
	Status    models.RequestStatus     `json:"status"`
	Result    *models.SchedulingResult `json:"result,omitempty"`
}
