// Package http exposes the dashboard API over chi.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/sentry"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/handlers"
	"github.com/coprede/sir-dashboard/internal/interfaces/http/middleware"
)

// RouterConfig wires the handlers and middleware. Nil optional parts are skipped.
type RouterConfig struct {
	DashboardHandler *handlers.DashboardHandler
	HealthHandler    *handlers.HealthHandler

	CORS           *middleware.CORSConfig
	Auth           *middleware.TokenAuth
	Logging        middleware.LoggingConfig
	RefreshLimiter *middleware.KeyedLimiter
	RequestTimeout time.Duration

	Logger           logging.Logger
	Reporter         *sentry.Reporter
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the chi route tree served by the API server.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(cfg.Logger, cfg.Reporter, handlers.WriteError))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		handlers.WriteError(w, req, errNotFound)
	})

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Auth != nil {
			api.Use(cfg.Auth.Authenticate(handlers.WriteError))
		}
		if cfg.RequestTimeout > 0 {
			api.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		registerDashboardRoutes(api, cfg.DashboardHandler, cfg.RefreshLimiter)
	})

	return r
}

func registerDashboardRoutes(r chi.Router, h *handlers.DashboardHandler, limiter *middleware.KeyedLimiter) {
	if h == nil {
		return
	}
	r.Get("/snapshot", h.Snapshot)
	r.Get("/history", h.History)
	r.Get("/transitions", h.Transitions)

	r.Route("/datasets/{dataset}", func(dr chi.Router) {
		dr.Get("/board", h.Board)
		dr.Get("/types", h.Types)
		dr.Get("/clusters/{cluster}", h.Cluster)
		dr.Get("/clusters/{cluster}/trend", h.Trend)
		dr.Get("/clusters/{cluster}/regions/{region}", h.Region)
	})

	r.Group(func(rr chi.Router) {
		if limiter != nil {
			rr.Use(middleware.RateLimit(limiter, handlers.WriteError))
		}
		rr.Post("/refresh", h.Refresh)
	})
}
