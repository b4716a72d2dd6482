package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
	"github.com/classly/scheduling-engine/pkg/jobs"
)

// NotificationSink delivers one notification to the outside world.
type NotificationSink interface {
	Deliver(ctx context.Context, notification models.Notification) error
}

// LogSink writes notifications to the structured log. It stands in when no
// external delivery channel is configured.
type LogSink struct {
	Logger *zap.Logger
}

// Deliver logs the notification.
func (s LogSink) Deliver(_ context.Context, notification models.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification delivered",
		zap.String("kind", string(notification.Kind)),
		zap.Strings("recipients", notification.Recipients),
		zap.String("subject", notification.Subject))
	return nil
}

// NotificationService dispatches notifications fire-and-forget over a
// background queue. Delivery failures are retried by the queue and never
// propagate back to the caller.
type NotificationService struct {
	enabled bool
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewNotificationService builds the dispatcher around the given sink.
func NewNotificationService(cfg config.NotificationsConfig, sink NotificationSink, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{enabled: cfg.Enabled, logger: logger}
	if !cfg.Enabled {
		return s
	}
	s.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(models.Notification)
		if !ok {
			logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return sink.Deliver(ctx, notification)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Notify enqueues the notification and returns immediately. A full or
// stopped queue only logs; scheduling outcomes are never blocked on
// notification delivery.
func (s *NotificationService) Notify(notification models.Notification) {
	if !s.enabled || s.queue == nil {
		return
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(notification.Kind),
		Payload: notification,
	})
	if err != nil {
		s.logger.Warn("dropping notification", zap.String("kind", string(notification.Kind)), zap.Error(err))
	}
}
