package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

// ResolutionContext carries the state candidate resolutions are built from.
type ResolutionContext struct {
	Classes          map[string]*models.ScheduledClass
	Availability     map[string]models.TeacherAvailability
	ExistingBookings []models.ScheduledClass
	Constraints      models.SchedulingConstraints
	Now              time.Time
}

// ConflictResolver enumerates and ranks ways out of a detected conflict.
// Resolutions carrying required approvals are surfaced but never marked
// auto-applicable.
type ConflictResolver struct {
	logger *zap.Logger
}

// NewConflictResolver constructs the resolver.
func NewConflictResolver(logger *zap.Logger) *ConflictResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictResolver{logger: logger}
}

// Resolve produces candidate resolutions ranked by feasibility descending,
// ties broken by lowest estimated implementation time.
func (r *ConflictResolver) Resolve(conflict models.SchedulingConflict, rctx ResolutionContext) []models.ConflictResolution {
	var resolutions []models.ConflictResolution

	switch conflict.Type {
	case models.ConflictTimeOverlap, models.ConflictTeacherUnavailable, models.ConflictStudentUnavailable:
		resolutions = append(resolutions, r.rescheduleOptions(conflict, rctx)...)
		resolutions = append(resolutions, r.reassignOptions(conflict, rctx)...)
	case models.ConflictCapacityExceeded:
		resolutions = append(resolutions, r.capacityOptions(conflict, rctx)...)
	case models.ConflictContentMismatch:
		resolutions = append(resolutions, r.contentOptions(conflict, rctx)...)
	default:
		r.logger.Warn("no resolution strategy for conflict type",
			zap.String("conflict_id", conflict.ID),
			zap.String("type", string(conflict.Type)))
	}

	sort.SliceStable(resolutions, func(i, j int) bool {
		a, b := resolutions[i], resolutions[j]
		if a.FeasibilityScore != b.FeasibilityScore {
			return a.FeasibilityScore > b.FeasibilityScore
		}
		return a.EstimatedImplementationTime < b.EstimatedImplementationTime
	})
	return resolutions
}

// rescheduleOptions proposes moving one conflicting class to a free slot in
// its teacher's declared availability.
func (r *ConflictResolver) rescheduleOptions(conflict models.SchedulingConflict, rctx ResolutionContext) []models.ConflictResolution {
	var resolutions []models.ConflictResolution
	for _, classID := range conflict.ClassIDs {
		class, ok := rctx.Classes[classID]
		if !ok || class.Status == models.ClassStatusConfirmed {
			continue
		}
		slot := r.nextFreeSlot(class, rctx)
		if slot == nil {
			continue
		}
		// Feasibility decays with how far the move pushes the class.
		delay := slot.StartTime.Sub(class.Slot.StartTime)
		feasibility := 0.9 - clamp01(delay.Hours()/(24*7))*0.4
		resolutions = append(resolutions, models.ConflictResolution{
			ID:                          uuid.NewString(),
			Type:                        models.ResolutionReschedule,
			Description:                 fmt.Sprintf("move class %s to %s", classID, slot.StartTime.Format(time.RFC3339)),
			FeasibilityScore:            feasibility,
			EstimatedImplementationTime: 5 * time.Minute,
			Impact: models.ResolutionImpact{
				AffectedStudents:  len(class.StudentIDs),
				AffectedTeachers:  1,
				DisruptionLevel:   3,
				SatisfactionDelta: -0.05,
			},
			TargetClassID: classID,
			ProposedSlot:  slot,
		})
	}
	return resolutions
}

// reassignOptions proposes a different teacher who is free at the class's
// current slot.
func (r *ConflictResolver) reassignOptions(conflict models.SchedulingConflict, rctx ResolutionContext) []models.ConflictResolution {
	var resolutions []models.ConflictResolution
	for _, classID := range conflict.ClassIDs {
		class, ok := rctx.Classes[classID]
		if !ok || class.Status == models.ClassStatusConfirmed {
			continue
		}
		for teacherID, availability := range rctx.Availability {
			if teacherID == class.TeacherID || !availability.IsAvailableAt(class.Slot) {
				continue
			}
			if r.teacherBusyAt(teacherID, class.Slot, rctx) {
				continue
			}
			resolutions = append(resolutions, models.ConflictResolution{
				ID:                          uuid.NewString(),
				Type:                        models.ResolutionReassignTeacher,
				Description:                 fmt.Sprintf("reassign class %s to teacher %s", classID, teacherID),
				FeasibilityScore:            0.7,
				EstimatedImplementationTime: 10 * time.Minute,
				Impact: models.ResolutionImpact{
					AffectedStudents:  len(class.StudentIDs),
					AffectedTeachers:  2,
					DisruptionLevel:   4,
					SatisfactionDelta: -0.1,
				},
				TargetClassID:     classID,
				ProposedTeacherID: teacherID,
			})
			break
		}
	}
	return resolutions
}

// capacityOptions proposes a class split when enrollment can carry two
// viable groups, and otherwise waitlists the excess.
func (r *ConflictResolver) capacityOptions(conflict models.SchedulingConflict, rctx ResolutionContext) []models.ConflictResolution {
	var resolutions []models.ConflictResolution
	for _, classID := range conflict.ClassIDs {
		class, ok := rctx.Classes[classID]
		if !ok {
			continue
		}
		minStudents := rctx.Constraints.MinStudentsForGroupClass
		if minStudents <= 0 {
			minStudents = 2
		}
		if len(class.StudentIDs) >= 2*minStudents {
			resolutions = append(resolutions, models.ConflictResolution{
				ID:                          uuid.NewString(),
				Type:                        models.ResolutionSplitClass,
				Description:                 fmt.Sprintf("split class %s into two groups of %d and %d", classID, len(class.StudentIDs)/2, len(class.StudentIDs)-len(class.StudentIDs)/2),
				FeasibilityScore:            0.65,
				EstimatedImplementationTime: 15 * time.Minute,
				Impact: models.ResolutionImpact{
					AffectedStudents:  len(class.StudentIDs),
					AffectedTeachers:  2,
					DisruptionLevel:   5,
					SatisfactionDelta: 0.05,
				},
				RequiredApprovals: []string{"teacher"},
				TargetClassID:     classID,
			})
		}

		max := class.Slot.Capacity.MaxStudents
		if max <= 0 || max > models.MaxGroupClassSize {
			max = models.MaxGroupClassSize
		}
		excess := len(class.StudentIDs) - max
		if excess > 0 {
			resolutions = append(resolutions, models.ConflictResolution{
				ID:                          uuid.NewString(),
				Type:                        models.ResolutionWaitlist,
				Description:                 fmt.Sprintf("waitlist %d excess student(s) from class %s", excess, classID),
				FeasibilityScore:            0.85,
				EstimatedImplementationTime: 2 * time.Minute,
				Impact: models.ResolutionImpact{
					AffectedStudents:  excess,
					AffectedTeachers:  0,
					DisruptionLevel:   2,
					SatisfactionDelta: -0.15,
				},
				TargetClassID: classID,
			})
		}
	}
	return resolutions
}

// contentOptions proposes dropping the mismatched items now or pushing the
// dependent items to the next session.
func (r *ConflictResolver) contentOptions(conflict models.SchedulingConflict, rctx ResolutionContext) []models.ConflictResolution {
	var resolutions []models.ConflictResolution
	for _, classID := range conflict.ClassIDs {
		class, ok := rctx.Classes[classID]
		if !ok {
			continue
		}
		resolutions = append(resolutions,
			models.ConflictResolution{
				ID:                          uuid.NewString(),
				Type:                        models.ResolutionAdjustContent,
				Description:                 fmt.Sprintf("remove mismatched content from class %s", classID),
				FeasibilityScore:            0.8,
				EstimatedImplementationTime: 1 * time.Minute,
				Impact: models.ResolutionImpact{
					AffectedStudents:  len(conflict.StudentIDs),
					DisruptionLevel:   1,
					SatisfactionDelta: 0,
				},
				TargetClassID: classID,
			},
			models.ConflictResolution{
				ID:                          uuid.NewString(),
				Type:                        models.ResolutionDeferContent,
				Description:                 fmt.Sprintf("defer affected content of class %s to the next session", classID),
				FeasibilityScore:            0.6,
				EstimatedImplementationTime: 1 * time.Minute,
				Impact: models.ResolutionImpact{
					AffectedStudents:  len(class.StudentIDs),
					DisruptionLevel:   2,
					SatisfactionDelta: -0.05,
				},
				TargetClassID: classID,
			},
		)
	}
	return resolutions
}

// nextFreeSlot finds the earliest available slot of the class's teacher that
// starts after the current slot and does not collide with other bookings.
func (r *ConflictResolver) nextFreeSlot(class *models.ScheduledClass, rctx ResolutionContext) *models.TimeSlot {
	availability, ok := rctx.Availability[class.TeacherID]
	if !ok {
		return nil
	}
	var candidates []models.TimeSlot
	for _, slot := range availability.AvailableSlots {
		if slot.StartTime.After(class.Slot.StartTime) && !slot.Overlaps(class.Slot) {
			candidates = append(candidates, slot)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})
	for i := range candidates {
		if !r.teacherBusyAt(class.TeacherID, candidates[i], rctx) {
			return &candidates[i]
		}
	}
	return nil
}

func (r *ConflictResolver) teacherBusyAt(teacherID string, slot models.TimeSlot, rctx ResolutionContext) bool {
	for i := range rctx.ExistingBookings {
		booking := &rctx.ExistingBookings[i]
		if booking.Status == models.ClassStatusCancelled {
			continue
		}
		if booking.TeacherID == teacherID && booking.Slot.Overlaps(slot) {
			return true
		}
	}
	for _, class := range rctx.Classes {
		if class.TeacherID == teacherID && class.Slot.Overlaps(slot) {
			return true
		}
	}
	return false
}
