package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewWithSettings("test-sink", Settings{OpenTimeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %v", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while the breaker is open")
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := New("test-ctx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
