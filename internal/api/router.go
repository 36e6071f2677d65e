package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fantasim/fcfsweep/internal/api/handlers"
	"github.com/Fantasim/fcfsweep/internal/api/middleware"
	"github.com/Fantasim/fcfsweep/internal/report"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the components the status API reads from.
type Deps struct {
	Sweeper handlers.Sweeper
	Events  report.Source // nil disables /api/events
	Health  handlers.HealthInfo
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)

	// Scrapers are usually remote, so /metrics skips the localhost checks.
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.HostCheck)
		r.Use(middleware.CORS)
		r.Use(middleware.CSRF)

		health := deps.Health
		if health.Version == "" {
			health.Version = Version
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", handlers.HealthHandler(health))
			r.Get("/status", handlers.GetStatus(deps.Sweeper))
			r.Get("/events", handlers.ListEvents(deps.Events))
			r.Post("/sweep", handlers.TriggerSweep(deps.Sweeper))
		})
	})

	slog.Info("router initialized",
		"middleware", []string{"requestLogging", "hostCheck", "cors", "csrf"},
		"events", deps.Events != nil,
	)

	return r
}
