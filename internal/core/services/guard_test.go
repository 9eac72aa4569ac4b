package services

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/timer"
)

func newTestGuard(t *testing.T, handler http.HandlerFunc) (*Guard, *timer.Manual, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	clock := timer.NewManual(time.Unix(0, 0))
	g, err := NewGuard(GuardConfig{
		BaseURL:  srv.URL,
		PingPath: "/cover-card.png",
	}, WithTimers(clock), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewGuard() err=%v", err)
	}
	t.Cleanup(g.Close)
	return g, clock, &hits
}

func TestNewGuard_InvalidBaseURL(t *testing.T) {
	if _, err := NewGuard(GuardConfig{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGuard_EndToEnd(t *testing.T) {
	g, clock, hits := newTestGuard(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	g.Boot()
	g.Keeper.Wait()

	snap := g.Snapshot()
	if snap.Status != domain.StatusRunning {
		t.Fatalf("expected RUNNING, got %s", snap.Status)
	}
	if snap.UptimeSeconds != 0 {
		t.Errorf("expected uptime 0, got %d", snap.UptimeSeconds)
	}
	if len(snap.Logs) != 2 {
		t.Fatalf("expected start notice + ping result, got %d entries", len(snap.Logs))
	}
	if snap.Logs[0].Message != StartMessage || snap.Logs[1].Kind != domain.LogKindSuccess {
		t.Errorf("unexpected boot log: %+v", snap.Logs)
	}
	if len(snap.Assets) != 3 {
		t.Errorf("expected 3 assets, got %d", len(snap.Assets))
	}

	clock.Advance(30 * time.Second)
	g.Keeper.Wait()

	snap = g.Snapshot()
	if len(snap.Logs) != 3 {
		t.Fatalf("expected one additional ping entry, got %d entries", len(snap.Logs))
	}
	if snap.UptimeSeconds != 30 {
		t.Errorf("expected uptime 30, got %d", snap.UptimeSeconds)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 probes to reach the server, got %d", hits.Load())
	}

	g.Stop()
	snap = g.Snapshot()
	if snap.Status != domain.StatusStopped || snap.UptimeSeconds != 0 {
		t.Fatalf("unexpected state after stop: %s/%d", snap.Status, snap.UptimeSeconds)
	}
	if len(snap.Logs) != 4 || snap.Logs[3].Kind != domain.LogKindWarning {
		t.Fatalf("expected a trailing warning entry, got %+v", snap.Logs)
	}

	clock.Advance(5 * time.Minute)
	g.Keeper.Wait()
	if got := len(g.Snapshot().Logs); got != 4 {
		t.Errorf("expected no new entries after stop, got %d", got)
	}
	if hits.Load() != 2 {
		t.Errorf("expected no probes after stop, got %d", hits.Load())
	}
}

func TestGuard_BootOnlyOnce(t *testing.T) {
	g, _, _ := newTestGuard(t, func(w http.ResponseWriter, r *http.Request) {})

	g.Boot()
	g.Keeper.Wait()
	g.Stop()
	g.Boot()

	if got := g.Keeper.State().Status; got != domain.StatusStopped {
		t.Errorf("second Boot must not restart, got %s", got)
	}
}

func TestGuard_NotFoundStillCountsAsKeepAlive(t *testing.T) {
	g, _, hits := newTestGuard(t, http.NotFound)

	g.Boot()
	g.Keeper.Wait()

	logs := g.Logs.Entries()
	if len(logs) != 2 || logs[1].Kind != domain.LogKindInfo || logs[1].Message != PingFallbackMessage {
		t.Errorf("expected info fallback entry, got %+v", logs)
	}
	if hits.Load() != 1 {
		t.Errorf("expected the probe to reach the server")
	}
	if g.Keeper.State().Status != domain.StatusRunning {
		t.Errorf("ping outcome must not affect status")
	}
}

func TestGuard_SnapshotReportsTarget(t *testing.T) {
	g, _, _ := newTestGuard(t, func(w http.ResponseWriter, r *http.Request) {})

	snap := g.Snapshot()
	if snap.Status != domain.StatusIdle {
		t.Errorf("expected IDLE before boot, got %s", snap.Status)
	}
	if snap.PingTarget != snap.Origin+"/cover-card.png" {
		t.Errorf("unexpected ping target %s (origin %s)", snap.PingTarget, snap.Origin)
	}
	if snap.PingInterval != "30s" {
		t.Errorf("expected 30s interval, got %s", snap.PingInterval)
	}
}

func TestGuard_PreviewStaysInItsSession(t *testing.T) {
	g, _, _ := newTestGuard(t, func(w http.ResponseWriter, r *http.Request) {})

	mine := g.NewSession()
	other := g.NewSession()

	if !mine.UpdateLocalPreview("cover-image", "blob:http://localhost/1234") {
		t.Fatal("expected known id to be updated")
	}

	if got := g.SessionSnapshot(mine).Assets[0].URL; got != "blob:http://localhost/1234" {
		t.Errorf("own session should see the preview, got %s", got)
	}
	if got := g.SessionSnapshot(other).Assets[0].URL; got != "/cover-card.png" {
		t.Errorf("other session must not see the preview, got %s", got)
	}
	if got := g.Snapshot().Assets[0].URL; got != "/cover-card.png" {
		t.Errorf("shared snapshot must not see the preview, got %s", got)
	}
	if got := g.NewSession().List()[0].URL; got != "/cover-card.png" {
		t.Errorf("a new session must start from the catalog, got %s", got)
	}

	want := []string{"/cover-card.png", "/donate-qrcode1.png", "/Rituxi1.png"}
	req := g.SessionSnapshot(mine).RequiredFiles
	if len(req) != len(want) {
		t.Fatalf("expected %v, got %v", want, req)
	}
	for i := range want {
		if req[i] != want[i] {
			t.Errorf("required file %d: expected %s, got %s", i, want[i], req[i])
		}
	}

	if g.Logs.Len() != 1 || g.Logs.Entries()[0].Kind != domain.LogKindWarning {
		t.Errorf("expected one preview warning in the shared log, got %+v", g.Logs.Entries())
	}
}
