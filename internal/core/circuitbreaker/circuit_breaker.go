package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"serverguard.keepalive/internal/core/logger"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Settings tunes a breaker. Zero values fall back to the defaults used by New.
type Settings struct {
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	MinRequests  uint32
	FailureRatio float64
}

type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a new circuit breaker with default settings
func New(name string) *CircuitBreaker {
	return NewWithSettings(name, Settings{})
}

func NewWithSettings(name string, s Settings) *CircuitBreaker {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = 60 * time.Second
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 3
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs the function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := cb.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}

	return err
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}
