package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/keepalive/start", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := call("10.0.0.1:1234"); code != http.StatusNoContent {
		t.Fatalf("first call: expected 204, got %d", code)
	}
	if code := call("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("same ip: expected 429, got %d", code)
	}
	if code := call("10.0.0.2:1234"); code != http.StatusNoContent {
		t.Errorf("other ip: expected 204, got %d", code)
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(60, 5)
	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastSeen = time.Now().Add(-2 * limiterIdleTTL)
	rl.mu.Unlock()

	rl.evictIdle(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("idle limiter should be evicted")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("active limiter should be kept")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.5:443", "192.168.1.5"},
		{"[::1]:8080", "::1"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
