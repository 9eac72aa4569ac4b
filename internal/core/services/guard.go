package services

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/timer"
)

// GuardConfig describes one keep-alive system.
type GuardConfig struct {
	BaseURL      string
	PingPath     string
	PingInterval time.Duration
	UptimeTick   time.Duration
	LogCapacity  int
	Assets       []domain.HostedAsset
}

// Snapshot is everything the dashboard renders.
type Snapshot struct {
	Status        domain.Status           `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Logs          []domain.SystemLogEntry `json:"logs"`
	LogCapacity   int                     `json:"log_capacity"`
	Assets        []domain.HostedAsset    `json:"assets"`
	RequiredFiles []string                `json:"required_files"`
	Origin        string                  `json:"origin"`
	PingTarget    string                  `json:"ping_target"`
	PingInterval  string                  `json:"ping_interval"`
}

type guardOptions struct {
	timers timer.Scheduler
	client *http.Client
	logger *slog.Logger
}

type GuardOption func(*guardOptions)

// WithTimers replaces the wall-clock scheduler, e.g. with timer.Manual in tests.
func WithTimers(s timer.Scheduler) GuardOption {
	return func(o *guardOptions) { o.timers = s }
}

// WithHTTPClient sets the client used for probes.
func WithHTTPClient(c *http.Client) GuardOption {
	return func(o *guardOptions) { o.client = c }
}

func WithLogger(l *slog.Logger) GuardOption {
	return func(o *guardOptions) { o.logger = l }
}

// Guard owns the log buffer, asset catalog, ping operation and scheduler of one
// keep-alive system. Construct with NewGuard, release with Close.
type Guard struct {
	Logs   *LogBuffer
	Pinger *PingService
	Keeper *Keeper

	cfg      GuardConfig
	catalog  []domain.HostedAsset
	bootOnce sync.Once
}

func NewGuard(cfg GuardConfig, opts ...GuardOption) (*Guard, error) {
	o := guardOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timers == nil {
		o.timers = timer.NewReal()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	catalog := domain.DefaultAssets()
	if cfg.Assets != nil {
		catalog = make([]domain.HostedAsset, len(cfg.Assets))
		copy(catalog, cfg.Assets)
	}

	logs := NewLogBuffer(cfg.LogCapacity)
	logs.Subscribe(mirrorTo(o.logger.With("component", "activity")))

	pinger, err := NewPingService(o.client, cfg.BaseURL, cfg.PingPath, logs)
	if err != nil {
		return nil, err
	}

	keeper := NewKeeper(KeeperConfig{
		PingInterval: cfg.PingInterval,
		UptimeTick:   cfg.UptimeTick,
	}, o.timers, pinger, logs, o.logger.With("component", "keeper"))

	return &Guard{
		Logs:    logs,
		Pinger:  pinger,
		Keeper:  keeper,
		cfg:     cfg,
		catalog: catalog,
	}, nil
}

// Boot applies the auto-start policy. Only the first call has an effect.
func (g *Guard) Boot() {
	g.bootOnce.Do(func() { g.Keeper.Start() })
}

func (g *Guard) Start() bool { return g.Keeper.Start() }

func (g *Guard) Stop() { g.Keeper.Stop() }

// Assets returns the configured assets without any preview override.
func (g *Guard) Assets() []domain.HostedAsset {
	out := make([]domain.HostedAsset, len(g.catalog))
	copy(out, g.catalog)
	return out
}

// NewSession returns a private asset registry for one dashboard session.
// Preview overrides made through it are never seen by other sessions.
func (g *Guard) NewSession() *AssetRegistry {
	return NewAssetRegistry(g.catalog, g.Logs)
}

// Snapshot is the state every observer shares.
func (g *Guard) Snapshot() Snapshot {
	return g.snapshot(g.Assets())
}

// SessionSnapshot is Snapshot with the session's preview overrides applied.
func (g *Guard) SessionSnapshot(session *AssetRegistry) Snapshot {
	return g.snapshot(session.List())
}

func (g *Guard) snapshot(assets []domain.HostedAsset) Snapshot {
	required := make([]string, len(g.catalog))
	for i, a := range g.catalog {
		required[i] = a.URL
	}
	state := g.Keeper.State()
	return Snapshot{
		Status:        state.Status,
		UptimeSeconds: state.UptimeSeconds,
		Logs:          g.Logs.Entries(),
		LogCapacity:   g.Logs.Capacity(),
		Assets:        assets,
		RequiredFiles: required,
		Origin:        g.cfg.BaseURL,
		PingTarget:    g.Pinger.Target(),
		PingInterval:  g.Keeper.cfg.PingInterval.String(),
	}
}

// Close cancels both timers and waits for in-flight probes. It does not log.
func (g *Guard) Close() {
	g.Keeper.Close()
}

func mirrorTo(l *slog.Logger) LogListener {
	return func(e domain.SystemLogEntry) {
		args := []any{"entry_id", e.ID, "kind", string(e.Kind)}
		switch e.Kind {
		case domain.LogKindWarning:
			l.Warn(e.Message, args...)
		case domain.LogKindError:
			l.Error(e.Message, args...)
		default:
			l.Info(e.Message, args...)
		}
	}
}
