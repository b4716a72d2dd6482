package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.Notification
	failFirst bool
	failures  int
}

func (s *recordingSink) Deliver(_ context.Context, notification models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFirst && s.failures == 0 {
		s.failures++
		return errors.New("downstream unavailable")
	}
	s.delivered = append(s.delivered, notification)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func TestNotificationServiceDelivers(t *testing.T) {
	sink := &recordingSink{}
	svc := NewNotificationService(config.NotificationsConfig{Enabled: true, Workers: 1, BufferSize: 4}, sink, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(models.Notification{Kind: models.NotificationConflictAlert, Subject: "overlap detected"})

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, models.NotificationConflictAlert, sink.delivered[0].Kind)
	assert.False(t, sink.delivered[0].CreatedAt.IsZero())
}

func TestNotificationServiceRetriesFailedDelivery(t *testing.T) {
	sink := &recordingSink{failFirst: true}
	svc := NewNotificationService(config.NotificationsConfig{Enabled: true, Workers: 1, BufferSize: 4}, sink, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(models.Notification{Kind: models.NotificationScheduleReady, Subject: "booked"})

	require.Eventually(t, func() bool { return sink.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestNotificationServiceDisabledIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	svc := NewNotificationService(config.NotificationsConfig{Enabled: false}, sink, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	// Never blocks and never delivers.
	svc.Notify(models.Notification{Kind: models.NotificationDailyUpdate, Subject: "ignored"})
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())
}
