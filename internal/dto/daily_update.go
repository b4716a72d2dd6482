package dto

import (
	"time"

	"github.com/classly/scheduling-engine/internal/models"
)

// DailyUpdateComponentPayload declares one batch component.
type DailyUpdateComponentPayload struct {
	Name      string   `json:"name" validate:"required"`
	DependsOn []string `json:"dependsOn"`
	Critical  bool     `json:"critical"`
}

// DailyUpdatePayload triggers a daily batch run. Retry settings fall back to
// configured defaults when omitted.
type DailyUpdatePayload struct {
	Components        []DailyUpdateComponentPayload `json:"components" validate:"required,min=1,dive"`
	MaxRetries        *int                          `json:"maxRetries" validate:"omitempty,min=0,max=10"`
	InitialDelayMs    *int                          `json:"initialDelayMs" validate:"omitempty,min=0"`
	BackoffMultiplier *float64                      `json:"backoffMultiplier" validate:"omitempty,gte=1"`
}

// ToModel converts the payload, filling retry defaults.
func (p DailyUpdatePayload) ToModel(defaults models.RetryConfig) models.DailyDataUpdateConfig {
	cfg := models.DailyDataUpdateConfig{Retry: defaults}
	for _, c := range p.Components {
		cfg.Components = append(cfg.Components, models.DailyUpdateComponent{
			Name:      c.Name,
			DependsOn: c.DependsOn,
			Critical:  c.Critical,
		})
	}
	if p.MaxRetries != nil {
		cfg.Retry.MaxRetries = *p.MaxRetries
	}
	if p.InitialDelayMs != nil {
		cfg.Retry.InitialDelay = time.Duration(*p.InitialDelayMs) * time.Millisecond
	}
	if p.BackoffMultiplier != nil {
		cfg.Retry.BackoffMultiplier = *p.BackoffMultiplier
	}
	return cfg
}
