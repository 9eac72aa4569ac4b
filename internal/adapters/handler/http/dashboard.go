package http

import (
	_ "embed"
	"net/http"
)

// dashboardHTML is the single-page dashboard: status badge, uptime, activity
// log, asset cards with local preview, and the serving origin.
//
//go:embed web/dashboard.html
var dashboardHTML []byte

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(dashboardHTML)
}
