package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{index}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/state", s.handleSetDeviceState)
			})
		})
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth returns the bridge health. It reports 200 while the controller
// is connected and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	last := s.bridge.LastRefresh()
	resp := map[string]any{
		"status":               "ok",
		"version":              s.version,
		"controller_connected": s.bridge.ControllerConnected(),
		"devices":              s.bridge.DeviceCount(),
		"websocket_clients":    s.hub.ClientCount(),
	}
	if !last.At.IsZero() {
		refresh := map[string]any{
			"at":      last.At.Format(time.RFC3339),
			"took_ms": last.Took.Milliseconds(),
			"devices": last.Devices,
		}
		if last.Err != nil {
			refresh["error"] = last.Err.Error()
		}
		resp["last_refresh"] = refresh
	}
	if s.health != nil {
		resp["health"] = s.health.Current()
	}

	status := http.StatusOK
	if !s.bridge.ControllerConnected() {
		resp["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
