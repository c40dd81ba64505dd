package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/yolink-bridge/internal/ingest"
)

// componentCheckTimeout bounds each sink health check made by /health.
const componentCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Subscriber string            `json:"subscriber"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok" (200) when the vendor subscription is live and
// every sink answers its health check, "degraded" (503) otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.subscriber.State()
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Subscriber: state.String(),
	}
	if state != ingest.StateConnected {
		resp.Status = "degraded"
	}

	if len(s.components) > 0 {
		resp.Components = make(map[string]string, len(s.components))
		names := make([]string, 0, len(s.components))
		for name := range s.components {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
			err := s.components[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
