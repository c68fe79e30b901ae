package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/keydesk/keydesk/internal/config"
	"github.com/keydesk/keydesk/internal/handler"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/middleware"
)

// Deps holds everything the route table needs.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger

	Verifier    middleware.TokenVerifier
	Revocations middleware.RevocationStore
	Limiter     middleware.IssueLimiter
	Gate        middleware.Authorizer

	Issuer   handler.Issuer
	Licenses handler.LicenseReader

	// Nil health checkers report "not configured".
	DB    handler.HealthChecker
	Cache handler.HealthChecker

	Recorder metrics.Recorder
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config

	h := handler.New()
	healthHandler := handler.NewHealthHandler(d.DB, d.Cache)
	licenseHandler := handler.NewLicenseHandler(d.Issuer, d.Licenses, d.Logger)
	sessionHandler := handler.NewSessionHandler(d.Revocations, d.Recorder, d.Logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Public endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/", h.Hello)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Every API request is authenticated and re-checked against the admin gate.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(middleware.SessionConfig{
			Logger:      d.Logger,
			Verifier:    d.Verifier,
			Revocations: d.Revocations,
		}))
		r.Use(middleware.RequireAdmin(middleware.AdminConfig{
			Logger:      d.Logger,
			Gate:        d.Gate,
			Revocations: d.Revocations,
			Recorder:    d.Recorder,
		}))

		r.Get("/session", sessionHandler.Get)
		r.Post("/session/signout", sessionHandler.SignOut)

		r.Route("/licenses", func(r chi.Router) {
			r.Get("/", licenseHandler.List)
			r.With(middleware.RateLimitIssue(middleware.RateLimitConfig{
				Logger:    d.Logger,
				Limiter:   d.Limiter,
				Enabled:   cfg.RateLimitIssueEnabled,
				PerMinute: cfg.RateLimitIssuePerMinute,
				Burst:     cfg.RateLimitIssueBurst,
			})).Post("/", licenseHandler.Issue)
			r.Get("/{key}", licenseHandler.Get)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
