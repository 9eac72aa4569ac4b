package ports

import (
	"context"

	"serverguard.keepalive/internal/core/domain"
)

// Pinger issues one keep-alive probe. Implementations never fail from the
// caller's point of view; the outcome is reported through the result.
type Pinger interface {
	Ping(ctx context.Context) domain.PingResult
}

// LogSink receives a copy of every activity log entry.
type LogSink interface {
	Name() string
	PublishLog(ctx context.Context, entry domain.SystemLogEntry) error
}

// HealthChecker is a dependency reported on the detailed health endpoint.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// StateSink receives scheduler state changes. Only the latest state matters.
type StateSink interface {
	Name() string
	PublishState(ctx context.Context, state domain.SchedulerState) error
}
