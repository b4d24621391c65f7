// Package api provides the HTTP API for TripWeave.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/api/handler"
	"github.com/tripweave/tripweave/internal/api/middleware"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Engine      *engine.Engine
	Registry    *registry.Registry
	Breakers    *resilience.BreakerSet
	Budget      *budget.Tracker
	Pool        *pgxpool.Pool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tripweave-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Pool, cfg.Registry, cfg.Budget)
	searchHandler := handler.NewSearchHandler(cfg.Engine)
	providerHandler := handler.NewProviderHandler(cfg.Registry, cfg.Breakers)

	// Create rate limit middleware for different endpoint categories
	searchRateLimit := middleware.RateLimitBySession(middleware.SearchRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)  // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Search endpoint - fans out to paid supplier APIs, strict rate limiting
		r.With(searchRateLimit).Post("/search", searchHandler.Search)

		// Offer detail lookup - standard rate limiting
		r.With(standardRateLimit).Get("/offers/{offerId}", searchHandler.GetOffer)

		// Provider health listing - standard rate limiting
		r.With(standardRateLimit).Get("/providers/health", providerHandler.Health)
	})

	return r
}
