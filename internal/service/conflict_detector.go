package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

// DetectionContext is the shared state a batch is checked against. Existing
// bookings are included so a batch cannot conflict with already-committed
// classes without it being reported.
type DetectionContext struct {
	Existing     []models.ScheduledClass
	Progress     map[string]*models.StudentProgress
	Availability map[string]models.TeacherAvailability
	Catalog      map[string]models.LearningContent
	Now          time.Time
}

// ConflictDetector finds relational conflicts across a batch of classes.
// Checks are pairwise and aggregate because a single class in isolation
// cannot overbook a teacher.
type ConflictDetector struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewConflictDetector constructs the detector.
func NewConflictDetector(logger *zap.Logger, metrics *MetricsService) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{logger: logger, metrics: metrics}
}

// Detect scans the batch plus existing bookings and returns structured
// conflicts ordered by severity (critical first), then detection order.
func (d *ConflictDetector) Detect(batch []models.ScheduledClass, dctx DetectionContext) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict

	all := make([]models.ScheduledClass, 0, len(batch)+len(dctx.Existing))
	all = append(all, batch...)
	for i := range dctx.Existing {
		if dctx.Existing[i].Status != models.ClassStatusCancelled {
			all = append(all, dctx.Existing[i])
		}
	}

	conflicts = append(conflicts, d.detectOverlaps(batch, all, dctx.Now)...)
	conflicts = append(conflicts, d.detectCapacity(batch, dctx.Now)...)
	conflicts = append(conflicts, d.detectUnavailability(batch, dctx)...)
	conflicts = append(conflicts, d.detectContentMismatch(batch, dctx)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		return severityRank(conflicts[i].Severity) < severityRank(conflicts[j].Severity)
	})

	for _, c := range conflicts {
		d.metrics.ObserveConflict(c.Type, c.Severity)
	}
	return conflicts
}

func severityRank(s models.ConflictSeverity) int {
	switch s {
	case models.SeverityCritical:
		return 0
	case models.SeverityHigh:
		return 1
	case models.SeverityMedium:
		return 2
	default:
		return 3
	}
}

// overlapSeverity applies the fixed rule: any confirmed participant makes
// the conflict critical, otherwise high.
func overlapSeverity(a, b *models.ScheduledClass) models.ConflictSeverity {
	if a.Status == models.ClassStatusConfirmed || b.Status == models.ClassStatusConfirmed {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

func (d *ConflictDetector) detectOverlaps(batch, all []models.ScheduledClass, now time.Time) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict
	seen := make(map[string]struct{})

	for i := range batch {
		a := &batch[i]
		for j := range all {
			b := &all[j]
			if a.ID == b.ID || !a.Slot.Overlaps(b.Slot) {
				continue
			}
			pair := pairKey(a.ID, b.ID)
			if _, dup := seen[pair]; dup {
				continue
			}

			if a.TeacherID == b.TeacherID {
				seen[pair] = struct{}{}
				conflicts = append(conflicts, models.SchedulingConflict{
					ID:          uuid.NewString(),
					Type:        models.ConflictTimeOverlap,
					Severity:    overlapSeverity(a, b),
					ClassIDs:    []string{a.ID, b.ID},
					TeacherIDs:  []string{a.TeacherID},
					Description: fmt.Sprintf("teacher %s has overlapping classes %s and %s", a.TeacherID, a.ID, b.ID),
					DetectedAt:  now,
				})
				continue
			}
			if shared := sharedStudents(a, b); len(shared) > 0 {
				seen[pair] = struct{}{}
				conflicts = append(conflicts, models.SchedulingConflict{
					ID:          uuid.NewString(),
					Type:        models.ConflictTimeOverlap,
					Severity:    overlapSeverity(a, b),
					ClassIDs:    []string{a.ID, b.ID},
					StudentIDs:  shared,
					Description: fmt.Sprintf("%d student(s) double-booked across classes %s and %s", len(shared), a.ID, b.ID),
					DetectedAt:  now,
				})
			}
		}
	}
	return conflicts
}

func (d *ConflictDetector) detectCapacity(batch []models.ScheduledClass, now time.Time) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict
	for i := range batch {
		class := &batch[i]
		max := class.Slot.Capacity.MaxStudents
		if max <= 0 || max > models.MaxGroupClassSize {
			max = models.MaxGroupClassSize
		}
		if len(class.StudentIDs) <= max {
			continue
		}
		severity := models.SeverityHigh
		if class.Status == models.ClassStatusConfirmed {
			severity = models.SeverityCritical
		}
		conflicts = append(conflicts, models.SchedulingConflict{
			ID:          uuid.NewString(),
			Type:        models.ConflictCapacityExceeded,
			Severity:    severity,
			ClassIDs:    []string{class.ID},
			StudentIDs:  append([]string(nil), class.StudentIDs...),
			Description: fmt.Sprintf("class %s has %d students, capacity %d", class.ID, len(class.StudentIDs), max),
			DetectedAt:  now,
		})
	}
	return conflicts
}

func (d *ConflictDetector) detectUnavailability(batch []models.ScheduledClass, dctx DetectionContext) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict
	for i := range batch {
		class := &batch[i]
		availability, ok := dctx.Availability[class.TeacherID]
		if !ok || availability.IsAvailableAt(class.Slot) {
			continue
		}
		conflicts = append(conflicts, models.SchedulingConflict{
			ID:          uuid.NewString(),
			Type:        models.ConflictTeacherUnavailable,
			Severity:    models.SeverityMedium,
			ClassIDs:    []string{class.ID},
			TeacherIDs:  []string{class.TeacherID},
			Description: fmt.Sprintf("class %s falls outside teacher %s declared availability", class.ID, class.TeacherID),
			DetectedAt:  dctx.Now,
		})
	}
	return conflicts
}

func (d *ConflictDetector) detectContentMismatch(batch []models.ScheduledClass, dctx DetectionContext) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict
	for i := range batch {
		class := &batch[i]
		offered := make(map[string]struct{}, len(class.ContentIDs))
		for _, id := range class.ContentIDs {
			offered[id] = struct{}{}
		}

		for _, studentID := range class.StudentIDs {
			progress, ok := dctx.Progress[studentID]
			if !ok {
				continue
			}
			for _, contentID := range class.ContentIDs {
				if progress.Completed(contentID) {
					conflicts = append(conflicts, models.SchedulingConflict{
						ID:          uuid.NewString(),
						Type:        models.ConflictContentMismatch,
						Severity:    models.SeverityLow,
						ClassIDs:    []string{class.ID},
						StudentIDs:  []string{studentID},
						ContentIDs:  []string{contentID},
						Description: fmt.Sprintf("student %s already completed content %s offered in class %s", studentID, contentID, class.ID),
						DetectedAt:  dctx.Now,
					})
				}
			}
		}

		// Prerequisites must ride along in-class or already be completed by
		// every participant.
		for _, contentID := range class.ContentIDs {
			content, ok := dctx.Catalog[contentID]
			if !ok {
				continue
			}
			for _, prereq := range content.Prerequisites {
				if _, inClass := offered[prereq]; inClass {
					continue
				}
				for _, studentID := range class.StudentIDs {
					progress, ok := dctx.Progress[studentID]
					if ok && !progress.Completed(prereq) {
						conflicts = append(conflicts, models.SchedulingConflict{
							ID:          uuid.NewString(),
							Type:        models.ConflictContentMismatch,
							Severity:    models.SeverityLow,
							ClassIDs:    []string{class.ID},
							StudentIDs:  []string{studentID},
							ContentIDs:  []string{contentID, prereq},
							Description: fmt.Sprintf("content %s in class %s requires prerequisite %s not completed by student %s", contentID, class.ID, prereq, studentID),
							DetectedAt:  dctx.Now,
						})
						break
					}
				}
			}
		}
	}
	return conflicts
}

func sharedStudents(a, b *models.ScheduledClass) []string {
	var shared []string
	for _, id := range a.StudentIDs {
		if b.HasStudent(id) {
			shared = append(shared, id)
		}
	}
	return shared
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
