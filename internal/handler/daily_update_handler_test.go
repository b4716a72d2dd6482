package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classly/scheduling-engine/internal/dto"
	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
)

type dailyUpdateMock struct {
	received *models.DailyDataUpdateConfig
}

func (m *dailyUpdateMock) RunDailyUpdate(ctx context.Context, cfg models.DailyDataUpdateConfig) (*models.DailyUpdateStatus, error) {
	m.received = &cfg
	return &models.DailyUpdateStatus{RunID: "run-1", Success: true}, nil
}

func enabledDefaults() config.DailyUpdateConfig {
	return config.DailyUpdateConfig{
		Enabled:           true,
		MaxRetries:        3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
	}
}

func TestDailyUpdateHandlerRun(t *testing.T) {
	mock := &dailyUpdateMock{}
	handler := NewDailyUpdateHandler(mock, enabledDefaults(), nil)

	payload := dto.DailyUpdatePayload{
		Components: []dto.DailyUpdateComponentPayload{
			{Name: "progress"},
			{Name: "schedules", DependsOn: []string{"progress"}, Critical: true},
		},
	}
	w := postJSON(t, handler.Run, "/admin/daily-update", payload)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.received)
	assert.Len(t, mock.received.Components, 2)
	assert.Equal(t, 3, mock.received.Retry.MaxRetries)
	assert.Equal(t, time.Second, mock.received.Retry.InitialDelay)

	var envelope struct {
		Data models.DailyUpdateStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
}

func TestDailyUpdateHandlerOverridesRetryPolicy(t *testing.T) {
	mock := &dailyUpdateMock{}
	handler := NewDailyUpdateHandler(mock, enabledDefaults(), nil)

	retries := 1
	delay := 250
	payload := dto.DailyUpdatePayload{
		Components:     []dto.DailyUpdateComponentPayload{{Name: "progress"}},
		MaxRetries:     &retries,
		InitialDelayMs: &delay,
	}
	w := postJSON(t, handler.Run, "/admin/daily-update", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mock.received.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, mock.received.Retry.InitialDelay)
}

func TestDailyUpdateHandlerRejectsEmptyComponents(t *testing.T) {
	mock := &dailyUpdateMock{}
	handler := NewDailyUpdateHandler(mock, enabledDefaults(), nil)

	w := postJSON(t, handler.Run, "/admin/daily-update", dto.DailyUpdatePayload{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.received)
}

func TestDailyUpdateHandlerDisabled(t *testing.T) {
	mock := &dailyUpdateMock{}
	handler := NewDailyUpdateHandler(mock, config.DailyUpdateConfig{Enabled: false}, nil)

	payload := dto.DailyUpdatePayload{Components: []dto.DailyUpdateComponentPayload{{Name: "progress"}}}
	w := postJSON(t, handler.Run, "/admin/daily-update", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.received)
}
