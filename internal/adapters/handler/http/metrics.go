package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serverguard.keepalive/internal/core/domain"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Keep-alive metrics
	pingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepalive_pings_total",
			Help: "Keep-alive probes by outcome (reached = 2xx answer)",
		},
		[]string{"outcome"},
	)

	pingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keepalive_ping_duration_seconds",
			Help:    "Keep-alive probe round trip in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	keepAliveRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keepalive_running",
			Help: "1 while the keep-alive scheduler is RUNNING",
		},
	)

	keepAliveUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "keepalive_uptime_seconds",
			Help: "Seconds since the current RUNNING period began",
		},
	)

	logEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keepalive_log_entries_total",
			Help: "Activity log entries by kind",
		},
		[]string{"kind"},
	)

	wsClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_ws_clients",
			Help: "Connected dashboard websocket clients",
		},
	)
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordPing records one keep-alive probe
func RecordPing(res domain.PingResult) {
	outcome := "fallback"
	if res.Reached {
		outcome = "reached"
	}
	pingsTotal.WithLabelValues(outcome).Inc()
	pingDuration.Observe(res.Latency.Seconds())
}

// RecordSchedulerState mirrors the scheduler status and uptime
func RecordSchedulerState(state domain.SchedulerState) {
	running := 0.0
	if state.Status == domain.StatusRunning {
		running = 1
	}
	keepAliveRunning.Set(running)
	keepAliveUptime.Set(float64(state.UptimeSeconds))
}

// RecordLogEntry counts an activity log entry
func RecordLogEntry(entry domain.SystemLogEntry) {
	logEntriesTotal.WithLabelValues(string(entry.Kind)).Inc()
}

// SetWSClients sets the number of connected dashboards
func SetWSClients(n int) {
	wsClients.Set(float64(n))
}
