package timer

import (
	"sync"
	"time"
)

// Manual is a simulated-time Scheduler. Nothing fires until Advance is called;
// Advance runs every due callback synchronously, in due-time order, with ties
// broken by registration order.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Every(period time.Duration, fn func()) Task {
	if period <= 0 {
		panic("timer: non-positive period")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{
		owner:  m,
		seq:    m.seq,
		period: period,
		next:   m.now.Add(period),
		fn:     fn,
	}
	m.tasks = append(m.tasks, t)
	return t
}

// Active returns the number of tasks that have not been cancelled.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves simulated time forward by d, firing callbacks as they come due.
// Callbacks run without the scheduler lock held, so they may schedule or cancel tasks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.next
		t.next = t.next.Add(t.period)
		fn := t.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) nextDue(target time.Time) *manualTask {
	var due *manualTask
	for _, t := range m.tasks {
		if t.next.After(target) {
			continue
		}
		if due == nil || t.next.Before(due.next) || (t.next.Equal(due.next) && t.seq < due.seq) {
			due = t
		}
	}
	return due
}

func (m *Manual) remove(t *manualTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.tasks {
		if cur == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

type manualTask struct {
	owner  *Manual
	seq    int
	period time.Duration
	next   time.Time
	fn     func()
}

func (t *manualTask) Cancel() {
	t.owner.remove(t)
}
