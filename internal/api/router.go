package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)
		r.Post("/discover", s.handleDiscover)
		r.Get("/activity", s.handleListActivity)

		r.Route("/robots", func(r chi.Router) {
			r.Get("/", s.handleListRobots)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRobot)
				r.Get("/shadow", s.handleGetShadow)
				r.Post("/commands/{command}", s.handleCommand)
				r.Post("/control/{target}", s.handleControl)

				r.Get("/options", s.handleListOptions)
				r.Put("/options/{option}", s.handleSetOption)

				r.Post("/connection/disable", s.handleDisable)
				r.Post("/connection/enable", s.handleEnable)

				r.Get("/favorites", s.handleListFavorites)
				r.Put("/favorites", s.handleSaveFavorite)
				r.Delete("/favorites/{name}", s.handleDeleteFavorite)
				r.Post("/favorites/{name}/start", s.handleStartFavorite)

				r.Get("/activity", s.handleRobotActivity)
			})
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// handleHealth reports the server version and every dependency check.
// Any failing check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status":  overall,
		"version": s.version,
		"checks":  checks,
	})
}

// wsPath returns the WebSocket route under /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
