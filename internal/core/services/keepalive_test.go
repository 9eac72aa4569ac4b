package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/timer"
)

// fakePinger records probes and logs like the real one.
type fakePinger struct {
	mu     sync.Mutex
	calls  int
	ctxErr error
	logs   *LogBuffer
	block  chan struct{}
}

func (f *fakePinger) Ping(ctx context.Context) domain.PingResult {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls++
	if err := ctx.Err(); err != nil {
		f.ctxErr = err
	}
	f.mu.Unlock()
	f.logs.Success(PingSuccessMessage)
	return domain.PingResult{Reached: true}
}

func (f *fakePinger) CtxErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctxErr
}

func (f *fakePinger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestKeeper(t *testing.T) (*Keeper, *timer.Manual, *fakePinger, *LogBuffer) {
	t.Helper()
	logs := NewLogBuffer(DefaultLogCapacity)
	clock := timer.NewManual(time.Unix(0, 0))
	pinger := &fakePinger{logs: logs}
	k := NewKeeper(KeeperConfig{}, clock, pinger, logs, nil)
	t.Cleanup(k.Close)
	return k, clock, pinger, logs
}

func countKind(entries []domain.SystemLogEntry, kind domain.LogKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestKeeper_InitialState(t *testing.T) {
	k, _, _, logs := newTestKeeper(t)

	state := k.State()
	if state.Status != domain.StatusIdle {
		t.Errorf("expected IDLE, got %s", state.Status)
	}
	if state.UptimeSeconds != 0 {
		t.Errorf("expected uptime 0, got %d", state.UptimeSeconds)
	}
	if logs.Len() != 0 {
		t.Errorf("expected empty log, got %d entries", logs.Len())
	}
}

func TestKeeper_StartPingsImmediately(t *testing.T) {
	k, clock, pinger, logs := newTestKeeper(t)

	if !k.Start() {
		t.Fatal("expected Start to report a transition")
	}
	k.Wait()

	if pinger.Calls() != 1 {
		t.Errorf("expected 1 immediate ping, got %d", pinger.Calls())
	}
	if clock.Active() != 2 {
		t.Errorf("expected 2 active timers, got %d", clock.Active())
	}
	entries := logs.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != StartMessage || entries[0].Kind != domain.LogKindInfo {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
}

func TestKeeper_IdempotentStart(t *testing.T) {
	k, clock, pinger, _ := newTestKeeper(t)

	k.Start()
	if k.Start() {
		t.Error("second Start must be a no-op")
	}
	k.Wait()
	if clock.Active() != 2 {
		t.Fatalf("expected exactly 2 timers, got %d", clock.Active())
	}

	before := pinger.Calls()
	clock.Advance(2 * DefaultPingInterval)
	k.Wait()

	if got := pinger.Calls() - before; got != 2 {
		t.Errorf("expected 2 timer-driven pings, got %d", got)
	}
	if got := k.State().UptimeSeconds; got != 60 {
		t.Errorf("expected uptime 60, got %d", got)
	}
}

func TestKeeper_StopResetsUptimeAndCancelsTimers(t *testing.T) {
	k, clock, pinger, logs := newTestKeeper(t)

	k.Start()
	clock.Advance(12 * time.Second)
	k.Wait()
	if got := k.State().UptimeSeconds; got != 12 {
		t.Fatalf("expected uptime 12, got %d", got)
	}

	k.Stop()
	state := k.State()
	if state.Status != domain.StatusStopped || state.UptimeSeconds != 0 {
		t.Fatalf("unexpected state after stop: %+v", state)
	}
	if clock.Active() != 0 {
		t.Errorf("expected no active timers, got %d", clock.Active())
	}
	last := logs.Entries()[logs.Len()-1]
	if last.Kind != domain.LogKindWarning || last.Message != StopMessage {
		t.Errorf("unexpected stop entry: %+v", last)
	}

	pings := pinger.Calls()
	entries := logs.Len()
	clock.Advance(5 * DefaultPingInterval)
	k.Wait()
	if pinger.Calls() != pings {
		t.Errorf("pings continued after stop")
	}
	if logs.Len() != entries {
		t.Errorf("log grew after stop")
	}
	if k.State().UptimeSeconds != 0 {
		t.Errorf("uptime advanced after stop")
	}

	// Restart counts from zero again.
	k.Start()
	clock.Advance(3 * time.Second)
	k.Wait()
	if got := k.State().UptimeSeconds; got != 3 {
		t.Errorf("expected uptime 3 after restart, got %d", got)
	}
}

func TestKeeper_StopIsAlwaysLogged(t *testing.T) {
	k, clock, _, logs := newTestKeeper(t)

	k.Stop()
	k.Stop()

	if got := countKind(logs.Entries(), domain.LogKindWarning); got != 2 {
		t.Errorf("expected 2 warning entries, got %d", got)
	}
	if clock.Active() != 0 {
		t.Errorf("expected no timers, got %d", clock.Active())
	}
	if k.State().Status != domain.StatusStopped {
		t.Errorf("expected STOPPED, got %s", k.State().Status)
	}
}

func TestKeeper_CloseIsSilent(t *testing.T) {
	k, clock, _, logs := newTestKeeper(t)

	k.Start()
	clock.Advance(7 * time.Second)
	k.Wait()
	entries := logs.Len()

	k.Close()

	if clock.Active() != 0 {
		t.Errorf("expected timers released, got %d", clock.Active())
	}
	if logs.Len() != entries {
		t.Errorf("Close must not log")
	}
	if got := k.State().UptimeSeconds; got != 7 {
		t.Errorf("Close must not touch uptime, got %d", got)
	}
	if k.Start() {
		t.Error("Start after Close must be a no-op")
	}
}

func TestKeeper_InFlightPingLogsAfterStop(t *testing.T) {
	logs := NewLogBuffer(DefaultLogCapacity)
	clock := timer.NewManual(time.Unix(0, 0))
	pinger := &fakePinger{logs: logs, block: make(chan struct{})}
	k := NewKeeper(KeeperConfig{}, clock, pinger, logs, nil)

	k.Start()
	k.Stop()
	close(pinger.block)
	k.Wait()

	entries := logs.Entries()
	last := entries[len(entries)-1]
	if last.Message != PingSuccessMessage {
		t.Errorf("expected late ping result to be logged last, got %+v", last)
	}
	if k.State().Status != domain.StatusStopped {
		t.Errorf("late ping must not change status")
	}
	k.Close()
}

func TestKeeper_OnChange(t *testing.T) {
	k, clock, _, _ := newTestKeeper(t)

	var states []domain.SchedulerState
	k.OnChange(func(s domain.SchedulerState) { states = append(states, s) })

	k.Start()
	clock.Advance(2 * time.Second)
	k.Stop()
	k.Wait()

	want := []domain.SchedulerState{
		{Status: domain.StatusRunning, UptimeSeconds: 0},
		{Status: domain.StatusRunning, UptimeSeconds: 1},
		{Status: domain.StatusRunning, UptimeSeconds: 2},
		{Status: domain.StatusStopped, UptimeSeconds: 0},
	}
	if len(states) != len(want) {
		t.Fatalf("expected %d notifications, got %d (%v)", len(want), len(states), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("notification %d: expected %+v, got %+v", i, want[i], states[i])
		}
	}
}

func TestKeeper_LastNotificationMatchesState(t *testing.T) {
	k, clock, _, _ := newTestKeeper(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var gate sync.Once
	k.OnChange(func(s domain.SchedulerState) {
		if s.Status == domain.StatusRunning && s.UptimeSeconds == 1 {
			gate.Do(func() {
				close(entered)
				<-release
			})
		}
	})

	var mu sync.Mutex
	var seen []domain.SchedulerState
	k.OnChange(func(s domain.SchedulerState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	k.Start()

	ticked := make(chan struct{})
	go func() {
		clock.Advance(time.Second)
		close(ticked)
	}()
	<-entered

	// Stop lands while the tick's notification is still being delivered.
	stopped := make(chan struct{})
	go func() {
		k.Stop()
		close(stopped)
	}()
	for k.State().Status != domain.StatusStopped {
		time.Sleep(time.Millisecond)
	}
	close(release)
	<-ticked
	<-stopped
	k.Wait()

	mu.Lock()
	defer mu.Unlock()
	last := seen[len(seen)-1]
	want := domain.SchedulerState{Status: domain.StatusStopped, UptimeSeconds: 0}
	if last != want {
		t.Errorf("expected final notification %+v, got %+v (all: %v)", want, last, seen)
	}
}

func TestKeeper_CloseLetsInFlightPingFinish(t *testing.T) {
	logs := NewLogBuffer(DefaultLogCapacity)
	clock := timer.NewManual(time.Unix(0, 0))
	pinger := &fakePinger{logs: logs, block: make(chan struct{})}
	k := NewKeeper(KeeperConfig{}, clock, pinger, logs, nil)

	k.Start()

	closed := make(chan struct{})
	go func() {
		k.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before the in-flight ping finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(pinger.block)
	<-closed

	if err := pinger.CtxErr(); err != nil {
		t.Errorf("in-flight ping must not be aborted, ctx err=%v", err)
	}
	entries := logs.Entries()
	if last := entries[len(entries)-1]; last.Message != PingSuccessMessage {
		t.Errorf("expected the ping result to be logged, got %+v", last)
	}
}
