package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check on /api/v1/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth)
	r.Handle("/metrics", s.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/device-types", s.handleListDeviceTypes)
			r.Get("/audit", s.handleListAuditLogs)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/profile", s.handleAddProfile)
					r.Post("/{action}", s.handleControlDevice)
				})
			})
		})
	})

	return r
}

// handleHealth reports the server version, the state of each registered
// dependency and the schema version. A failing dependency or a pending
// migration makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"version": s.version,
		"checks":  checks,
	}

	if s.schema != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		st, err := s.schema.SchemaStatus(ctx)
		cancel()

		switch {
		case err != nil:
			checks["schema"] = err.Error()
			status = http.StatusServiceUnavailable
		case !st.UpToDate():
			body["schema"] = st
			status = http.StatusServiceUnavailable
		default:
			body["schema"] = st
		}
	}

	body["status"] = "ok"
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
