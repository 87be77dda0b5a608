package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/infrastructure"
	"nhstac/internal/middleware"
	"nhstac/internal/services"
)

// RouterConfig holds what the router serves
type RouterConfig struct {
	Browser   *services.BrowserService
	Health    *services.HealthService
	Metrics   http.Handler // Prometheus exposition; nil disables /metrics
	Pipeline  *infrastructure.PipelineMetrics
	RateLimit config.RateLimitConfig
	Logger    *slog.Logger
}

// NewRouter builds the browser API router
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Tracing(cfg.Pipeline))
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger).Handler)
	}

	health := NewHealthHandler(cfg.Health, logger)
	r.Get("/healthz", health.HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	browser := NewBrowserHandler(cfg.Browser, logger)
	r.Mount("/api/v1", browser.Routes())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RenderError(w, r, apperrors.NotFoundError("route "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RenderError(w, r, apperrors.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed"))
	})
	return r
}

// NewServer wraps handler in an http.Server with the configured timeouts
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
