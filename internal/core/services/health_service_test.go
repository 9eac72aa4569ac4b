package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/ports"
)

type staticState domain.SchedulerState

func (s staticState) State() domain.SchedulerState { return domain.SchedulerState(s) }

type mockChecker struct {
	name string
	err  error
}

func (m mockChecker) Name() string                    { return m.name }
func (m mockChecker) Check(ctx context.Context) error { return m.err }

func TestHealthService_CheckHealth(t *testing.T) {
	running := staticState{Status: domain.StatusRunning, UptimeSeconds: 5}
	stopped := staticState{Status: domain.StatusStopped}

	tests := []struct {
		name     string
		state    staticState
		checkers []ports.HealthChecker
		want     HealthStatus
		wantCode int
	}{
		{name: "running no sinks", state: running, want: HealthStatusHealthy, wantCode: http.StatusOK},
		{name: "stopped", state: stopped, want: HealthStatusDegraded, wantCode: http.StatusOK},
		{
			name:     "sink down",
			state:    running,
			checkers: []ports.HealthChecker{mockChecker{name: "redis"}, mockChecker{name: "mqtt", err: errors.New("not connected")}},
			want:     HealthStatusDegraded,
			wantCode: http.StatusOK,
		},
		{
			name:     "sinks up",
			state:    running,
			checkers: []ports.HealthChecker{mockChecker{name: "redis"}},
			want:     HealthStatusHealthy,
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewHealthService(tt.state, tt.checkers, "")
			report := svc.CheckHealth(context.Background())
			if report.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.Status)
			}
			if report.Version != "0.0.1" {
				t.Errorf("expected default version, got %s", report.Version)
			}
			if _, ok := report.Components["keepalive"]; !ok {
				t.Error("missing keepalive component")
			}
			if len(report.Components) != 1+len(tt.checkers) {
				t.Errorf("expected %d components, got %d", 1+len(tt.checkers), len(report.Components))
			}
			if _, code := svc.SimpleHealthCheck(context.Background()); code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, code)
			}
		})
	}
}
