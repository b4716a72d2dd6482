package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/classly/scheduling-engine/internal/dto"
	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/pkg/config"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
	"github.com/classly/scheduling-engine/pkg/response"
)

type dailyUpdateRunner interface {
	RunDailyUpdate(ctx context.Context, cfg models.DailyDataUpdateConfig) (*models.DailyUpdateStatus, error)
}

// DailyUpdateHandler triggers the daily batch run.
type DailyUpdateHandler struct {
	service  dailyUpdateRunner
	defaults config.DailyUpdateConfig
	validate *validator.Validate
}

// NewDailyUpdateHandler constructs the handler.
func NewDailyUpdateHandler(svc dailyUpdateRunner, defaults config.DailyUpdateConfig, validate *validator.Validate) *DailyUpdateHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &DailyUpdateHandler{service: svc, defaults: defaults, validate: validate}
}

// Run godoc
// @Summary Run the daily data update batch
// @Description Executes components in dependency order with per-component retries. Admin only.
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.DailyUpdatePayload true "Daily update configuration"
// @Success 200 {object} response.Envelope
// @Router /admin/daily-update [post]
func (h *DailyUpdateHandler) Run(c *gin.Context) {
	if !h.defaults.Enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "daily update is disabled"))
		return
	}

	var payload dto.DailyUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid daily update payload"))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "invalid daily update payload"))
		return
	}

	cfg := payload.ToModel(models.RetryConfig{
		MaxRetries:        h.defaults.MaxRetries,
		InitialDelay:      h.defaults.InitialDelay,
		BackoffMultiplier: h.defaults.BackoffMultiplier,
	})
	status, err := h.service.RunDailyUpdate(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}
