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

type schedulingOrchestrator interface {
	Submit(ctx context.Context, request models.SchedulingRequest) *models.SchedulingResult
	SubmitAsync(request models.SchedulingRequest) error
	Status(requestID string) (models.RequestStatus, *models.SchedulingResult, error)
	Cancel(requestID string) error
}

// SchedulingHandler exposes the orchestrator endpoints.
type SchedulingHandler struct {
	service  schedulingOrchestrator
	validate *validator.Validate
}

// NewSchedulingHandler constructs the handler.
func NewSchedulingHandler(svc schedulingOrchestrator, validate *validator.Validate) *SchedulingHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SchedulingHandler{service: svc, validate: validate}
}

// Submit godoc
// @Summary Run a scheduling request synchronously
// @Description Blocks until the request reaches a terminal status or the processing budget lapses.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.SchedulingRequestPayload true "Scheduling request payload"
// @Success 200 {object} response.Envelope
// @Router /scheduling/requests [post]
func (h *SchedulingHandler) Submit(c *gin.Context) {
	request, err := h.bindRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := h.service.Submit(c.Request.Context(), request)
	response.JSON(c, http.StatusOK, dto.RequestStatusResponse{
		RequestID: request.ID,
		Status:    result.Status,
		Result:    result,
	})
}

// SubmitAsync godoc
// @Summary Queue a scheduling request for background processing
// @Description Returns a request handle immediately; poll the status endpoint for the result.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.SchedulingRequestPayload true "Scheduling request payload"
// @Success 202 {object} response.Envelope
// @Router /scheduling/requests/async [post]
func (h *SchedulingHandler) SubmitAsync(c *gin.Context) {
	request, err := h.bindRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.SubmitAsync(request); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.AsyncSubmissionResponse{
		RequestID: request.ID,
		Status:    string(models.StatusIdle),
	})
}

// Status godoc
// @Summary Poll a scheduling request
// @Tags Scheduling
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /scheduling/requests/{id} [get]
func (h *SchedulingHandler) Status(c *gin.Context) {
	requestID := c.Param("id")
	status, result, err := h.service.Status(requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RequestStatusResponse{
		RequestID: requestID,
		Status:    status,
		Result:    result,
	})
}

// Cancel godoc
// @Summary Cancel an in-flight scheduling request
// @Description Terminal requests cannot be cancelled. Cancellation discards all partial work.
// @Tags Scheduling
// @Param id path string true "Request ID"
// @Success 204
// @Router /scheduling/requests/{id} [delete]
func (h *SchedulingHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *SchedulingHandler) bindRequest(c *gin.Context) (models.SchedulingRequest, error) {
	var payload dto.SchedulingRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return models.SchedulingRequest{}, appErrors.Wrap(err, appErrors.ErrValidation, "invalid scheduling payload")
	}
	if err := h.validate.Struct(payload); err != nil {
		return models.SchedulingRequest{}, appErrors.Wrap(err, appErrors.ErrValidation, "invalid scheduling payload")
	}
	return payload.ToModel(uuid.NewString(), time.Now().UTC()), nil
}
