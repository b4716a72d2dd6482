package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classly/scheduling-engine/internal/dto"
	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
)

type matcherMock struct {
	received *models.OneOnOneBookingRequest
	err      error
}

func (m *matcherMock) Match(ctx context.Context, request models.OneOnOneBookingRequest) (*models.OneOnOneBookingResult, error) {
	m.received = &request
	if m.err != nil {
		return nil, m.err
	}
	return &models.OneOnOneBookingResult{
		RequestID: request.ID,
		Recommendations: []models.OneOnOneBookingRecommendation{
			{Rank: 1, Teacher: models.TeacherProfile{TeacherID: "t1"}},
		},
	}, nil
}

func validBookingPayload() dto.OneOnOneBookingPayload {
	return dto.OneOnOneBookingPayload{
		StudentID:       "s1",
		CourseID:        "course-1",
		DurationMinutes: 30,
	}
}

func TestMatchingHandlerMatch(t *testing.T) {
	mock := &matcherMock{}
	handler := NewMatchingHandler(mock, nil)

	w := postJSON(t, handler.Match, "/matching/one-on-one", validBookingPayload())
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.received)
	assert.Equal(t, "s1", mock.received.StudentID)
	assert.Equal(t, 30, int(mock.received.Duration.Minutes()))

	var envelope struct {
		Data models.OneOnOneBookingResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Recommendations, 1)
	assert.Equal(t, "t1", envelope.Data.Recommendations[0].Teacher.TeacherID)
}

func TestMatchingHandlerRejectsMissingStudent(t *testing.T) {
	mock := &matcherMock{}
	handler := NewMatchingHandler(mock, nil)

	payload := validBookingPayload()
	payload.StudentID = ""
	w := postJSON(t, handler.Match, "/matching/one-on-one", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.received)
}

func TestMatchingHandlerRejectsOutOfRangeDuration(t *testing.T) {
	handler := NewMatchingHandler(&matcherMock{}, nil)

	payload := validBookingPayload()
	payload.DurationMinutes = 5
	w := postJSON(t, handler.Match, "/matching/one-on-one", payload)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchingHandlerPropagatesServiceErrors(t *testing.T) {
	mock := &matcherMock{err: appErrors.Clone(appErrors.ErrNoFeasibleCandidate, "no teacher available")}
	handler := NewMatchingHandler(mock, nil)

	w := postJSON(t, handler.Match, "/matching/one-on-one", validBookingPayload())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
