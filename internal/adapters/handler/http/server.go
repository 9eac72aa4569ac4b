package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/logger"
	"serverguard.keepalive/internal/core/services"
)

// Options configures the HTTP surface.
type Options struct {
	PublicDir        string
	EnableMetrics    bool
	APIRatePerMinute int
	APIRateBurst     int
}

type Server struct {
	router    *chi.Mux
	guard     *services.Guard
	healthSvc *services.HealthService
	hub       *Hub
	limiter   *RateLimiter
	validate  *validator.Validate
	opts      Options

	httpServer *http.Server
}

func NewServer(guard *services.Guard, healthSvc *services.HealthService, hub *Hub, opts Options) *Server {
	if opts.APIRatePerMinute <= 0 {
		opts.APIRatePerMinute = 60
	}
	if opts.APIRateBurst <= 0 {
		opts.APIRateBurst = 10
	}
	s := &Server{
		router:    chi.NewRouter(),
		guard:     guard,
		healthSvc: healthSvc,
		hub:       hub,
		limiter:   NewRateLimiter(opts.APIRatePerMinute, opts.APIRateBurst),
		validate:  validator.New(),
		opts:      opts,
	}
	s.routes()
	return s
}

// assetCORS lets external clients (e.g. a mini-program runtime) fetch hosted images.
var assetCORS = cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	AllowedHeaders:   []string{"Content-Type", "Accept", "Range"},
	ExposedHeaders:   []string{"Content-Length", "Content-Range"},
	AllowCredentials: false,
}

var apiCORS = cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
	AllowedHeaders:   []string{"Accept", "Content-Type"},
	AllowCredentials: false,
	MaxAge:           300,
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogContext)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	if s.opts.EnableMetrics {
		s.router.Use(MetricsMiddleware)
		s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			MetricsHandler().ServeHTTP(w, r)
		})
	}

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(apiCORS))

		r.Get("/health", s.handleHealth)
		r.Get("/health/detailed", s.handleDetailedHealth)
		r.Get("/ws", s.handleWS)

		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)
		r.Get("/assets", s.handleListAssets)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/keepalive/start", s.handleStart)
			r.Post("/keepalive/stop", s.handleStop)
			r.Put("/assets/{id}/preview", s.handleUpdatePreview)
		})
	})

	s.router.Get("/", s.handleDashboard)

	// Everything else is a hosted file.
	s.router.Group(func(r chi.Router) {
		r.Use(cors.Handler(assetCORS))
		r.Handle("/*", http.FileServer(http.Dir(s.opts.PublicDir)))
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// StartBackground runs the rate limiter janitor until ctx is done.
func (s *Server) StartBackground(ctx context.Context) {
	go s.limiter.Cleanup(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, w, r, s.guard.NewSession(), s.handleClientMessage)
}

// SnapshotMessage builds a client's first message from its own session.
func SnapshotMessage(guard *services.Guard) func(*Client) Message {
	return func(c *Client) Message {
		return Message{Type: MessageSnapshot, Payload: guard.SessionSnapshot(c.session)}
	}
}

// previewMessage is the payload of a MessagePreview.
type previewMessage struct {
	ID  string `json:"id" validate:"required,max=128"`
	URL string `json:"url" validate:"required,max=4096"`
}

// handleClientMessage applies a dashboard's preview to its own session only and
// answers with that session's asset list.
func (s *Server) handleClientMessage(c *Client, in ClientMessage) {
	if in.Type != MessagePreview {
		s.hub.Reply(c, Message{Type: MessageError, Payload: "unknown message type " + in.Type})
		return
	}
	var req previewMessage
	if err := json.Unmarshal(in.Payload, &req); err != nil {
		s.hub.Reply(c, Message{Type: MessageError, Payload: "invalid preview"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.hub.Reply(c, Message{Type: MessageError, Payload: err.Error()})
		return
	}
	if !c.session.UpdateLocalPreview(req.ID, req.URL) {
		s.hub.Reply(c, Message{Type: MessageError, Payload: "asset not found: " + req.ID})
		return
	}
	s.hub.Reply(c, Message{Type: MessageAssets, Payload: c.session.List()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.guard.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.guard.Keeper.State())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.guard.Logs.Entries())
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.guard.Assets())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	started := s.guard.Start()
	logger.InfoContext(r.Context(), "Keep-alive start requested", "started", started)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"started": started,
		"state":   s.guard.Keeper.State(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.guard.Stop()
	logger.InfoContext(r.Context(), "Keep-alive stop requested")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": s.guard.Keeper.State(),
	})
}

// PreviewRequest previews a URL for one asset. Over plain HTTP the request is its
// own session: the answer carries the override, nothing else ever sees it.
type PreviewRequest struct {
	URL string `json:"url" validate:"required,max=4096"`
}

func (s *Server) handleUpdatePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PreviewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		logger.WarnContext(r.Context(), "Preview rejected", "asset", id, "error", err)
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	session := s.guard.NewSession()
	if !session.UpdateLocalPreview(id, req.URL) {
		writeError(w, http.StatusNotFound, "Asset not found", id)
		return
	}

	asset, _ := session.Get(id)
	writeJSON(w, http.StatusOK, asset)
}

// Observe wires guard events into the hub and the metrics. Call it before Boot.
func Observe(guard *services.Guard, hub *Hub, metrics bool) {
	guard.Logs.Subscribe(func(e domain.SystemLogEntry) {
		hub.Broadcast(Message{Type: MessageLog, Payload: e})
		if metrics {
			RecordLogEntry(e)
		}
	})
	guard.Keeper.OnChange(func(state domain.SchedulerState) {
		hub.Broadcast(Message{Type: MessageStatus, Payload: state})
		if metrics {
			RecordSchedulerState(state)
		}
	})
	if metrics {
		guard.Pinger.OnResult(RecordPing)
	}
}

// requestLogContext exposes chi's request id to logger.WithContext.
func requestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, details string) {
	writeJSON(w, code, map[string]string{"error": msg, "details": details})
}
