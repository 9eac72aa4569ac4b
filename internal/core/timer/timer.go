// Package timer provides cancellable recurring tasks.
package timer

import (
	"sync"
	"time"
)

// Task is a scheduled recurring callback. Cancel is idempotent.
type Task interface {
	Cancel()
}

// Scheduler runs fn every period until the returned Task is cancelled.
// Callbacks of a single task never overlap.
type Scheduler interface {
	Every(period time.Duration, fn func()) Task
	Now() time.Time
}

// Real is a Scheduler backed by time.Ticker, one goroutine per task.
type Real struct{}

func NewReal() *Real {
	return &Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) Every(period time.Duration, fn func()) Task {
	t := &tickerTask{stop: make(chan struct{})}
	ticker := time.NewTicker(period)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// A tick and a cancel may be ready together.
				select {
				case <-t.stop:
					return
				default:
				}
				fn()
			}
		}
	}()

	return t
}

type tickerTask struct {
	once sync.Once
	stop chan struct{}
}

func (t *tickerTask) Cancel() {
	t.once.Do(func() { close(t.stop) })
}
