package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"serverguard.keepalive/internal/core/circuitbreaker"
	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/ports"
)

const (
	defaultForwardBuffer  = 256
	defaultPublishTimeout = 5 * time.Second
)

type forwardTarget struct {
	sink    ports.LogSink
	breaker *circuitbreaker.CircuitBreaker
}

// LogForwarder copies activity log entries to external sinks (redis, mqtt).
// Enqueue never blocks: when the queue is full the entry is dropped for the sinks only.
type LogForwarder struct {
	targets []forwardTarget
	queue   chan domain.SystemLogEntry
	dropped atomic.Int64
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewLogForwarder(sinks []ports.LogSink, buffer int, logger *slog.Logger) *LogForwarder {
	if buffer <= 0 {
		buffer = defaultForwardBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &LogForwarder{
		queue:  make(chan domain.SystemLogEntry, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, s := range sinks {
		f.targets = append(f.targets, forwardTarget{
			sink:    s,
			breaker: circuitbreaker.New("sink-" + s.Name()),
		})
	}
	return f
}

// Enqueue is a LogListener.
func (f *LogForwarder) Enqueue(entry domain.SystemLogEntry) {
	select {
	case f.queue <- entry:
	default:
		if n := f.dropped.Add(1); n == 1 || n%100 == 0 {
			f.logger.Warn("log forward queue full, dropping entries", "dropped_total", n)
		}
	}
}

// Dropped returns how many entries never reached the sinks.
func (f *LogForwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run publishes queued entries until ctx is done, then drains what is left.
func (f *LogForwarder) Run(ctx context.Context) {
	defer f.closeOnce.Do(func() { close(f.done) })

	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case entry := <-f.queue:
			f.publish(entry)
		}
	}
}

// Done is closed when Run returns.
func (f *LogForwarder) Done() <-chan struct{} {
	return f.done
}

func (f *LogForwarder) drain() {
	for {
		select {
		case entry := <-f.queue:
			f.publish(entry)
		default:
			return
		}
	}
}

// publish is detached from Run's context so entries queued before shutdown still go out.
func (f *LogForwarder) publish(entry domain.SystemLogEntry) {
	for _, t := range f.targets {
		pctx, cancel := context.WithTimeout(context.Background(), defaultPublishTimeout)
		err := t.breaker.Execute(pctx, func() error {
			return t.sink.PublishLog(pctx, entry)
		})
		cancel()
		if err != nil {
			f.logger.Debug("log sink publish failed", "sink", t.sink.Name(), "entry_id", entry.ID, "error", err)
		}
	}
}
