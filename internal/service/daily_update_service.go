package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
	"github.com/classly/scheduling-engine/pkg/jobs"
)

// ComponentRunner executes one named daily-update component.
type ComponentRunner func(ctx context.Context) error

// DailyUpdateService runs the daily batch: each component in dependency
// order, with per-component retries and exponential backoff. A failed
// component skips its dependents rather than running them against stale
// inputs.
type DailyUpdateService struct {
	runners map[string]ComponentRunner
	logger  *zap.Logger

	notifier notifier
}

// NewDailyUpdateService builds the batch runner over the given component
// implementations.
func NewDailyUpdateService(runners map[string]ComponentRunner, dispatcher notifier, logger *zap.Logger) *DailyUpdateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyUpdateService{runners: runners, notifier: dispatcher, logger: logger}
}

// RunDailyUpdate executes the configured components and returns per-component
// status plus aggregate metrics. The run as a whole succeeds when every
// critical component succeeded.
func (s *DailyUpdateService) RunDailyUpdate(ctx context.Context, cfg models.DailyDataUpdateConfig) (*models.DailyUpdateStatus, error) {
	order, err := componentOrder(cfg.Components)
	if err != nil {
		return nil, err
	}

	status := &models.DailyUpdateStatus{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Success:   true,
	}
	byName := make(map[string]models.DailyUpdateComponent, len(cfg.Components))
	for _, component := range cfg.Components {
		byName[component.Name] = component
	}
	outcome := make(map[string]bool, len(order))

	for _, name := range order {
		component := byName[name]
		if skip, failedDep := dependencyFailed(component, outcome); skip {
			s.logger.Warn("skipping component, dependency failed",
				zap.String("component", name),
				zap.String("failed_dependency", failedDep))
			outcome[name] = false
			status.Components = append(status.Components, models.ComponentStatus{
				Name:    name,
				Skipped: true,
				Error:   fmt.Sprintf("dependency %s failed", failedDep),
			})
			status.Metrics.ComponentsSkipped++
			if component.Critical {
				status.Success = false
			}
			continue
		}

		componentStatus := s.runComponent(ctx, component, cfg.Retry)
		outcome[name] = componentStatus.Success
		status.Components = append(status.Components, componentStatus)
		if componentStatus.Attempts > 1 {
			status.Metrics.TotalRetries += componentStatus.Attempts - 1
		}
		if componentStatus.Success {
			status.Metrics.ComponentsOK++
		} else {
			status.Metrics.ComponentsFailed++
			if component.Critical {
				status.Success = false
			}
		}
	}

	status.CompletedAt = time.Now().UTC()
	status.Metrics.ComponentsTotal = len(order)
	status.Metrics.TotalDuration = status.CompletedAt.Sub(status.StartedAt)

	if s.notifier != nil {
		s.notifier.Notify(models.Notification{
			Kind:      models.NotificationDailyUpdate,
			Subject:   fmt.Sprintf("daily update %s finished", status.RunID),
			Payload:   status,
			CreatedAt: time.Now().UTC(),
		})
	}
	return status, nil
}

func (s *DailyUpdateService) runComponent(ctx context.Context, component models.DailyUpdateComponent, retry models.RetryConfig) models.ComponentStatus {
	runner, ok := s.runners[component.Name]
	if !ok {
		return models.ComponentStatus{
			Name:  component.Name,
			Error: "no runner registered",
		}
	}

	maxAttempts := retry.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	initialDelay := retry.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	multiplier := retry.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 2
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := runner(ctx); err != nil {
			lastErr = err
			s.logger.Warn("component attempt failed",
				zap.String("component", component.Name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < maxAttempts {
				delay := jobs.Backoff(initialDelay, multiplier, attempt)
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					lastErr = ctx.Err()
					attempt = maxAttempts
				case <-timer.C:
				}
			}
			continue
		}
		return models.ComponentStatus{
			Name:     component.Name,
			Attempts: attempt,
			Success:  true,
			Duration: time.Since(start),
		}
	}
	return models.ComponentStatus{
		Name:     component.Name,
		Attempts: maxAttempts,
		Error:    lastErr.Error(),
		Duration: time.Since(start),
	}
}

func dependencyFailed(component models.DailyUpdateComponent, outcome map[string]bool) (bool, string) {
	for _, dep := range component.DependsOn {
		if ok, ran := outcome[dep]; ran && !ok {
			return true, dep
		}
	}
	return false, ""
}

// componentOrder topologically sorts components by their dependencies,
// keeping declaration order among independent components. Unknown or cyclic
// dependencies are configuration errors.
func componentOrder(components []models.DailyUpdateComponent) ([]string, error) {
	indegree := make(map[string]int, len(components))
	dependents := make(map[string][]string)
	var names []string
	byName := make(map[string]models.DailyUpdateComponent, len(components))

	for _, component := range components {
		if _, dup := byName[component.Name]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate component "+component.Name)
		}
		byName[component.Name] = component
		names = append(names, component.Name)
		indegree[component.Name] = 0
	}
	for _, component := range components {
		for _, dep := range component.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %s depends on unknown %s", component.Name, dep))
			}
			indegree[component.Name]++
			dependents[dep] = append(dependents[dep], component.Name)
		}
	}

	var queue []string
	for _, name := range names {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(order) != len(names) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "component dependencies form a cycle")
	}
	return order, nil
}
