package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
)

const bookingAuditHorizon = 7 * 24 * time.Hour

// DefaultComponentRunners wires the standard daily batch components:
// a content catalog refresh and an audit of upcoming bookings. Additional
// runners can be merged into the returned map before constructing the
// DailyUpdateService.
func DefaultComponentRunners(
	catalog *ContentCatalogService,
	cache *CacheService,
	bookings bookingStore,
	availability availabilityStore,
	detector *ConflictDetector,
	dispatcher notifier,
	logger *zap.Logger,
) map[string]ComponentRunner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return map[string]ComponentRunner{
		"content_catalog_refresh": func(ctx context.Context) error {
			cache.InvalidatePattern(ctx, "scheduling:content:*")
			catalog.InvalidateAll()
			return nil
		},
		"booking_audit": func(ctx context.Context) error {
			return auditUpcomingBookings(ctx, bookings, availability, detector, dispatcher, logger)
		},
	}
}

// auditUpcomingBookings re-detects conflicts across the committed schedule
// for the coming week. Anything found is alerted, not auto-corrected: the
// booked record changed outside the engine and a human decides.
func auditUpcomingBookings(
	ctx context.Context,
	bookings bookingStore,
	availability availabilityStore,
	detector *ConflictDetector,
	dispatcher notifier,
	logger *zap.Logger,
) error {
	now := time.Now().UTC()
	booked, err := bookings.ListByDateRange(ctx, now, now.Add(bookingAuditHorizon))
	if err != nil {
		return fmt.Errorf("list upcoming bookings: %w", err)
	}
	if len(booked) == 0 {
		return nil
	}

	teacherAvailability := make(map[string]models.TeacherAvailability)
	for _, class := range booked {
		if _, ok := teacherAvailability[class.TeacherID]; ok {
			continue
		}
		avail, err := availability.GetTeacherAvailability(ctx, class.TeacherID, now, now.Add(bookingAuditHorizon))
		if err != nil {
			continue
		}
		teacherAvailability[class.TeacherID] = *avail
	}

	conflicts := detector.Detect(booked, DetectionContext{
		Availability: teacherAvailability,
		Now:          now,
	})
	if len(conflicts) == 0 {
		return nil
	}

	logger.Warn("booking audit found conflicts", zap.Int("conflicts", len(conflicts)))
	if dispatcher != nil {
		dispatcher.Notify(models.Notification{
			Kind:      models.NotificationConflictAlert,
			Subject:   fmt.Sprintf("%d conflicts found in upcoming bookings", len(conflicts)),
			Payload:   conflicts,
			CreatedAt: now,
		})
	}
	return nil
}
