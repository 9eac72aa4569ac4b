package services

import (
	"context"
	"log/slog"
	"sync"

	"serverguard.keepalive/internal/core/circuitbreaker"
	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/ports"
)

// StateRelay publishes scheduler states to a sink from its own goroutine.
// Offer never blocks; a state still pending when a newer one arrives is replaced.
type StateRelay struct {
	sink    ports.StateSink
	breaker *circuitbreaker.CircuitBreaker
	latest  chan domain.SchedulerState
	logger  *slog.Logger

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewStateRelay(sink ports.StateSink, logger *slog.Logger) *StateRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateRelay{
		sink:    sink,
		breaker: circuitbreaker.New("state-" + sink.Name()),
		latest:  make(chan domain.SchedulerState, 1),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Offer is a Keeper.OnChange hook.
func (r *StateRelay) Offer(state domain.SchedulerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.latest:
	default:
	}
	r.latest <- state
}

// Run publishes offered states until ctx is done, then flushes the pending one.
func (r *StateRelay) Run(ctx context.Context) {
	defer r.closeOnce.Do(func() { close(r.done) })

	for {
		select {
		case <-ctx.Done():
			select {
			case state := <-r.latest:
				r.publish(state)
			default:
			}
			return
		case state := <-r.latest:
			r.publish(state)
		}
	}
}

// Done is closed when Run returns.
func (r *StateRelay) Done() <-chan struct{} {
	return r.done
}

func (r *StateRelay) publish(state domain.SchedulerState) {
	pctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
	defer cancel()
	err := r.breaker.Execute(pctx, func() error {
		return r.sink.PublishState(pctx, state)
	})
	if err != nil {
		r.logger.Debug("state sink publish failed", "sink", r.sink.Name(), "error", err)
	}
}
