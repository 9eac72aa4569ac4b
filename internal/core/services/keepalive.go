package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/ports"
	"serverguard.keepalive/internal/core/timer"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultUptimeTick   = time.Second

	StartMessage = "Keep-alive: started automatically"
	StopMessage  = "Keep-alive: stopped manually"
)

// KeeperConfig holds the scheduler periods.
type KeeperConfig struct {
	PingInterval time.Duration
	UptimeTick   time.Duration
}

// runTimers is the set of tasks owned by one RUNNING period.
// Callbacks compare their run against Keeper.run, so a tick that was already
// in flight when the period ended is discarded.
type runTimers struct {
	ping   timer.Task
	uptime timer.Task
}

func (r *runTimers) cancel() {
	r.ping.Cancel()
	r.uptime.Cancel()
}

// Keeper is the keep-alive scheduler: a ping timer and an uptime timer gated by one status.
type Keeper struct {
	mu     sync.Mutex
	status domain.Status
	uptime int64
	run    *runTimers
	closed bool

	cfg    KeeperConfig
	timers timer.Scheduler
	pinger ports.Pinger
	logs   *LogBuffer
	logger *slog.Logger

	inflight sync.WaitGroup

	// emitMu orders notifications; each one reads the state it delivers.
	emitMu   sync.Mutex
	onChange []func(domain.SchedulerState)
}

func NewKeeper(cfg KeeperConfig, timers timer.Scheduler, pinger ports.Pinger, logs *LogBuffer, logger *slog.Logger) *Keeper {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.UptimeTick <= 0 {
		cfg.UptimeTick = DefaultUptimeTick
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		status: domain.StatusIdle,
		cfg:    cfg,
		timers: timers,
		pinger: pinger,
		logs:   logs,
		logger: logger,
	}
}

// OnChange adds a hook called after every status change and uptime tick.
// Register hooks before Start.
func (k *Keeper) OnChange(fn func(domain.SchedulerState)) {
	k.onChange = append(k.onChange, fn)
}

// State returns the current status and uptime.
func (k *Keeper) State() domain.SchedulerState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stateLocked()
}

func (k *Keeper) stateLocked() domain.SchedulerState {
	return domain.SchedulerState{Status: k.status, UptimeSeconds: k.uptime}
}

// Start enters RUNNING, fires one ping immediately and arms both timers.
// It reports false without side effects when already running or closed.
func (k *Keeper) Start() bool {
	k.mu.Lock()
	if k.closed || k.status == domain.StatusRunning {
		k.mu.Unlock()
		return false
	}

	k.status = domain.StatusRunning
	k.uptime = 0
	k.logs.Info(StartMessage)

	run := &runTimers{}
	k.run = run
	k.firePingLocked()
	run.ping = k.timers.Every(k.cfg.PingInterval, func() { k.pingTick(run) })
	run.uptime = k.timers.Every(k.cfg.UptimeTick, func() { k.uptimeTick(run) })
	k.mu.Unlock()

	k.logger.Info("keep-alive started", "ping_interval", k.cfg.PingInterval.String())
	k.notify()
	return true
}

// Stop enters STOPPED, zeroes uptime, records the manual stop and cancels both timers.
// Calling it repeatedly is safe; each call is logged.
func (k *Keeper) Stop() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.status = domain.StatusStopped
	k.uptime = 0
	k.logs.Warn(StopMessage)
	k.releaseLocked()
	k.mu.Unlock()

	k.logger.Info("keep-alive stopped")
	k.notify()
}

// Close releases the timers without logging or touching uptime, then waits for
// probes already in flight to record their result. They are not aborted.
func (k *Keeper) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	k.releaseLocked()
	k.mu.Unlock()

	k.inflight.Wait()
}

// Wait blocks until pings already in flight have been logged.
func (k *Keeper) Wait() {
	k.inflight.Wait()
}

func (k *Keeper) releaseLocked() {
	if k.run != nil {
		k.run.cancel()
		k.run = nil
	}
}

func (k *Keeper) pingTick(run *runTimers) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.run != run {
		return
	}
	k.firePingLocked()
}

// firePingLocked launches a probe whose completion is logged even if the
// scheduler stops before it resolves.
func (k *Keeper) firePingLocked() {
	k.inflight.Add(1)
	go func() {
		defer k.inflight.Done()
		k.pinger.Ping(context.Background())
	}()
}

func (k *Keeper) uptimeTick(run *runTimers) {
	k.mu.Lock()
	if k.run != run {
		k.mu.Unlock()
		return
	}
	k.uptime++
	k.mu.Unlock()

	k.notify()
}

// notify delivers the state current at delivery time, so the last
// notification always matches State() even when a tick races a Stop.
func (k *Keeper) notify() {
	k.emitMu.Lock()
	defer k.emitMu.Unlock()
	state := k.State()
	for _, fn := range k.onChange {
		fn(state)
	}
}
