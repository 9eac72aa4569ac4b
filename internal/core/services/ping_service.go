package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/tracing"
)

const (
	// KeepAliveParam is the cache-busting query parameter added to every probe.
	KeepAliveParam = "keepalive"

	PingSuccessMessage  = "Heartbeat OK: hosted image asset reachable"
	PingFallbackMessage = "Heartbeat sent: server received the request"

	// DefaultProbeTimeout bounds a probe when the client has no timeout of its own.
	DefaultProbeTimeout = 10 * time.Second
)

// PingService sends the keep-alive probe: HEAD <base>/<path>?keepalive=<unix-ms>.
// Any outcome counts as a keep-alive signal, so a failure is logged at info, never error.
type PingService struct {
	client    *http.Client
	target    *url.URL
	logs      *LogBuffer
	now       func() time.Time
	observers []func(domain.PingResult)
}

// NewPingService resolves path against baseURL. A nil client gets a default one.
func NewPingService(client *http.Client, baseURL, path string, logs *LogBuffer) (*PingService, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid ping path: %w", err)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &PingService{
		client: client,
		target: base.ResolveReference(ref),
		logs:   logs,
		now:    time.Now,
	}, nil
}

// OnResult adds a hook called after each probe, once its log entry is written.
// Register hooks before the first probe.
func (p *PingService) OnResult(fn func(domain.PingResult)) {
	p.observers = append(p.observers, fn)
}

// Target returns the probe URL without the cache-busting parameter.
func (p *PingService) Target() string {
	return p.target.String()
}

// ProbeURL returns the probe URL for the given instant.
func (p *PingService) ProbeURL(at time.Time) string {
	u := *p.target
	q := u.Query()
	q.Set(KeepAliveParam, strconv.FormatInt(at.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// Ping performs one probe and appends exactly one log entry. It never returns an error.
func (p *PingService) Ping(ctx context.Context) domain.PingResult {
	if p.client.Timeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultProbeTimeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "keepalive.ping")
	defer span.End()

	start := p.now()
	res := domain.PingResult{
		URL: p.ProbeURL(start),
		At:  start,
	}
	span.SetAttributes(attribute.String("keepalive.url", res.URL))

	res.StatusCode, res.Err = p.head(ctx, res.URL)
	res.Latency = p.now().Sub(start)
	res.Reached = res.Err == nil

	if res.Reached {
		p.logs.Success(PingSuccessMessage)
	} else {
		span.SetStatus(codes.Error, res.Err.Error())
		p.logs.Info(PingFallbackMessage)
	}
	span.SetAttributes(
		attribute.Int("http.status_code", res.StatusCode),
		attribute.Bool("keepalive.reached", res.Reached),
	)

	for _, fn := range p.observers {
		fn(res)
	}
	return res
}

func (p *PingService) head(ctx context.Context, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
