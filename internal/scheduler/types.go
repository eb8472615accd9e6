package scheduler

import (
	"context"
	"errors"
	"time"

	"terminbot/internal/booking"
)

// ErrIntervalTooShort rejects a subscribe request below the configured
// minimum. Nothing is stored when it is returned.
var ErrIntervalTooShort = errors.New("check interval below the allowed minimum")

// Prober runs one availability lookup (booking.Probe in production).
type Prober interface {
	Check(ctx context.Context, departmentID, appointmentType string) ([]booking.AvailabilityResult, error)
}

// Notifier delivers one message to one user. Delivery is best-effort: the
// implementation logs failures, the scheduler never retries.
type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}

// MetricsSink is fire-and-forget observability. Implementations must never
// block or fail the operation they instrument.
type MetricsSink interface {
	RecordSearch(departmentID, appointmentType string)
	RecordResult(departmentID, locationCaption, appointmentType string, daysUntil, slots int)
	RecordEmptyResult(departmentID, appointmentType string)
	RecordSubscription(departmentID, appointmentType string, interval time.Duration)
	SetActiveSubscriptions(n int)
}

// HealthPinger is invoked on every housekeeping run as a liveness self-ping.
type HealthPinger interface {
	Ping(ctx context.Context)
}

// Config controls subscription validation and the background timers.
type Config struct {
	// MinInterval is the smallest per-subscription check interval users may
	// request. Default 15m.
	MinInterval time.Duration
	// Housekeeping is how often expired subscriptions are swept. Default 30m.
	Housekeeping time.Duration
	// ProbeTimeout bounds one availability lookup. It is clamped below the
	// subscription's own interval so a hung lookup can never overlap the
	// next firing. Default 2m.
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = 15 * time.Minute
	}
	if c.Housekeeping <= 0 {
		c.Housekeeping = 30 * time.Minute
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Minute
	}
	return c
}

type nopMetrics struct{}

func (nopMetrics) RecordSearch(string, string)                            {}
func (nopMetrics) RecordResult(string, string, string, int, int)          {}
func (nopMetrics) RecordEmptyResult(string, string)                       {}
func (nopMetrics) RecordSubscription(string, string, time.Duration)       {}
func (nopMetrics) SetActiveSubscriptions(int)                             {}
