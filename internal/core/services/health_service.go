package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/ports"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

const healthCheckTimeout = 5 * time.Second

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Latency   string       `json:"latency,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentHealth `json:"components"`
}

type stateSource interface {
	State() domain.SchedulerState
}

type HealthService struct {
	keeper   stateSource
	checkers []ports.HealthChecker
	version  string
}

func NewHealthService(keeper stateSource, checkers []ports.HealthChecker, version string) *HealthService {
	if version == "" {
		version = "0.0.1"
	}
	return &HealthService{
		keeper:   keeper,
		checkers: checkers,
		version:  version,
	}
}

// CheckHealth reports degraded when the loop is not running or a sink check fails.
func (s *HealthService) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     HealthStatusHealthy,
		Version:    s.version,
		CheckedAt:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}

	keepalive := s.checkKeepAlive()
	report.Components["keepalive"] = keepalive
	if keepalive.Status != HealthStatusHealthy {
		report.Status = HealthStatusDegraded
	}

	for _, c := range s.checkers {
		h := s.checkComponent(ctx, c)
		report.Components[c.Name()] = h
		if h.Status != HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}

	return report
}

func (s *HealthService) checkKeepAlive() ComponentHealth {
	state := s.keeper.State()
	if state.Status != domain.StatusRunning {
		return ComponentHealth{
			Status:    HealthStatusDegraded,
			Message:   fmt.Sprintf("keep-alive is %s", state.Status),
			CheckedAt: time.Now(),
		}
	}
	return ComponentHealth{
		Status:    HealthStatusHealthy,
		Message:   fmt.Sprintf("running for %ds", state.UptimeSeconds),
		CheckedAt: time.Now(),
	}
}

func (s *HealthService) checkComponent(ctx context.Context, c ports.HealthChecker) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.Check(ctx); err != nil {
		return ComponentHealth{
			Status:    HealthStatusUnhealthy,
			Message:   fmt.Sprintf("%s check failed: %v", c.Name(), err),
			Latency:   time.Since(start).String(),
			CheckedAt: time.Now(),
		}
	}

	return ComponentHealth{
		Status:    HealthStatusHealthy,
		Latency:   time.Since(start).String(),
		CheckedAt: time.Now(),
	}
}

// SimpleHealthCheck returns a simple health status for load balancers
func (s *HealthService) SimpleHealthCheck(ctx context.Context) (string, int) {
	report := s.CheckHealth(ctx)

	switch report.Status {
	case HealthStatusHealthy:
		return "ok", http.StatusOK
	case HealthStatusDegraded:
		return "degraded", http.StatusOK // Still serving requests
	default:
		return "unhealthy", http.StatusServiceUnavailable
	}
}
