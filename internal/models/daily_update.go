package models

import "time"

// DailyUpdateComponent is one step of the daily batch run. Components run in
// dependency order; a failed dependency skips its dependents.
type DailyUpdateComponent struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on,omitempty"`
	Critical  bool     `json:"critical"`
}

// RetryConfig governs per-component retry behaviour.
type RetryConfig struct {
	MaxRetries        int           `json:"max_retries"`
	InitialDelay      time.Duration `json:"initial_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DailyDataUpdateConfig describes one daily batch invocation.
type DailyDataUpdateConfig struct {
	Components []DailyUpdateComponent `json:"components"`
	Retry      RetryConfig            `json:"retry"`
}

// ComponentStatus records the outcome of one component run.
type ComponentStatus struct {
	Name     string        `json:"name"`
	Attempts int           `json:"attempts"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DailyUpdateMetrics aggregates a daily run.
type DailyUpdateMetrics struct {
	ComponentsTotal   int           `json:"components_total"`
	ComponentsOK      int           `json:"components_ok"`
	ComponentsFailed  int           `json:"components_failed"`
	ComponentsSkipped int           `json:"components_skipped"`
	TotalRetries      int           `json:"total_retries"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// DailyUpdateStatus is the terminal output of one daily batch run.
type DailyUpdateStatus struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Success     bool               `json:"success"`
	Components  []ComponentStatus  `json:"components"`
	Metrics     DailyUpdateMetrics `json:"metrics"`
}

// NotificationKind discriminates dispatcher payloads.
type NotificationKind string

const (
	NotificationDailyUpdate   NotificationKind = "daily_update"
	NotificationConflictAlert NotificationKind = "conflict_alert"
	NotificationScheduleReady NotificationKind = "schedule_ready"
)

// Notification is the fire-and-forget payload handed to the dispatcher.
// Dispatch failures never block or fail a scheduling result.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	Recipients []string         `json:"recipients,omitempty"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body,omitempty"`
	Payload    interface{}      `json:"payload,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
