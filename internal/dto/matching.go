package dto

import (
	"time"

	"github.com/classly/scheduling-engine/internal/models"
)

// OneOnOneBookingPayload asks the matcher for the best teacher/slot pairing.
type OneOnOneBookingPayload struct {
	StudentID          string            `json:"studentId" validate:"required"`
	CourseID           string            `json:"courseId" validate:"required"`
	PreferredSlots     []TimeSlotPayload `json:"preferredSlots" validate:"omitempty,dive"`
	PreferredTeacherID string            `json:"preferredTeacherId"`
	DurationMinutes    int               `json:"durationMinutes" validate:"required,min=15,max=180"`
	FlexibleTime       bool              `json:"flexibleTime"`
	FlexibleTeacher    bool              `json:"flexibleTeacher"`
	FlexibleDuration   bool              `json:"flexibleDuration"`
	AutoConfirm        bool              `json:"autoConfirm"`
}

// ToModel converts the payload into a domain booking request.
func (p OneOnOneBookingPayload) ToModel(id string, now time.Time) models.OneOnOneBookingRequest {
	req := models.OneOnOneBookingRequest{
		ID:                 id,
		StudentID:          p.StudentID,
		CourseID:           p.CourseID,
		PreferredTeacherID: p.PreferredTeacherID,
		Duration:           time.Duration(p.DurationMinutes) * time.Minute,
		Flexibility: models.BookingFlexibility{
			FlexibleTime:     p.FlexibleTime,
			FlexibleTeacher:  p.FlexibleTeacher,
			FlexibleDuration: p.FlexibleDuration,
		},
		AutoConfirm: p.AutoConfirm,
		SubmittedAt: now,
	}
	for _, slot := range p.PreferredSlots {
		req.PreferredSlots = append(req.PreferredSlots, slot.ToModel())
	}
	return req
}
