package models

import "time"

// BookingFlexibility states which trade-offs the requester accepts when the
// preferred teacher/slot cannot be booked.
type BookingFlexibility struct {
	FlexibleTime     bool `json:"flexible_time"`
	FlexibleTeacher  bool `json:"flexible_teacher"`
	FlexibleDuration bool `json:"flexible_duration"`
}

// OneOnOneBookingRequest asks for the best teacher/slot pairing for one student.
type OneOnOneBookingRequest struct {
	ID                 string             `json:"id"`
	StudentID          string             `json:"student_id"`
	CourseID           string             `json:"course_id"`
	PreferredSlots     []TimeSlot         `json:"preferred_slots,omitempty"`
	PreferredTeacherID string             `json:"preferred_teacher_id,omitempty"`
	Duration           time.Duration      `json:"duration"`
	Flexibility        BookingFlexibility `json:"flexibility"`
	AutoConfirm        bool               `json:"auto_confirm"`
	SubmittedAt        time.Time          `json:"submitted_at"`
}

// TeacherProfile carries the teacher-specific matching dimensions.
type TeacherProfile struct {
	TeacherID       string   `db:"teacher_id" json:"teacher_id"`
	YearsExperience int      `db:"years_experience" json:"years_experience"`
	Specializations []string `json:"specializations,omitempty"`
	Languages       []string `json:"languages,omitempty"`
	AverageRating   float64  `db:"average_rating" json:"average_rating"` // 0-5
	CompletionRate  float64  `db:"completion_rate" json:"completion_rate"`
}

// TeacherMatchingScore is the weighted score for one teacher/slot candidate.
type TeacherMatchingScore struct {
	TeacherID                 string             `json:"teacher_id"`
	Slot                      TimeSlot           `json:"slot"`
	Overall                   float64            `json:"overall"`
	Dimensions                map[string]float64 `json:"dimensions"`
	BookingSuccessProbability float64            `json:"booking_success_probability"`
}

// OneOnOneBookingRecommendation is one ranked booking option.
type OneOnOneBookingRecommendation struct {
	Rank          int                  `json:"rank"`
	Teacher       TeacherProfile       `json:"teacher"`
	Score         TeacherMatchingScore `json:"score"`
	AutoConfirmed bool                 `json:"auto_confirmed"`
	Class         *ScheduledClass      `json:"class,omitempty"`
}

// AlternativeBookingOptions lists fallback paths when no option was
// auto-confirmed.
type AlternativeBookingOptions struct {
	Waitlist                bool                   `json:"waitlist"`
	FlexibleTimeOptions     []TimeSlot             `json:"flexible_time_options,omitempty"`
	FlexibleTeacherOptions  []TeacherMatchingScore `json:"flexible_teacher_options,omitempty"`
	FlexibleDurationOptions []time.Duration        `json:"flexible_duration_options,omitempty"`
}

// OneOnOneBookingResult is the matcher's terminal output.
type OneOnOneBookingResult struct {
	RequestID       string                          `json:"request_id"`
	Recommendations []OneOnOneBookingRecommendation `json:"recommendations"`
	Alternatives    *AlternativeBookingOptions      `json:"alternatives,omitempty"`
	CreatedAt       time.Time                       `json:"created_at"`
}
