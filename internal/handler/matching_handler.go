package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classly/scheduling-engine/internal/dto"
	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
	"github.com/classly/scheduling-engine/pkg/response"
)

type oneOnOneMatcher interface {
	Match(ctx context.Context, request models.OneOnOneBookingRequest) (*models.OneOnOneBookingResult, error)
}

// MatchingHandler exposes the 1-on-1 auto-matcher.
type MatchingHandler struct {
	service  oneOnOneMatcher
	validate *validator.Validate
}

// NewMatchingHandler constructs the handler.
func NewMatchingHandler(svc oneOnOneMatcher, validate *validator.Validate) *MatchingHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MatchingHandler{service: svc, validate: validate}
}

// Match godoc
// @Summary Match a student with the best teacher and slot for a 1-on-1 class
// @Description Returns ranked recommendations. When auto-confirm applies, the top option is booked immediately.
// @Tags Matching
// @Accept json
// @Produce json
// @Param payload body dto.OneOnOneBookingPayload true "Booking request payload"
// @Success 200 {object} response.Envelope
// @Router /matching/one-on-one [post]
func (h *MatchingHandler) Match(c *gin.Context) {
	var payload dto.OneOnOneBookingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid booking payload"))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid booking payload"))
		return
	}

	result, err := h.service.Match(c.Request.Context(), payload.ToModel(uuid.NewString(), time.Now().UTC()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
