// Package main provides the entrypoint for the TripWeave API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/adapter/driveo"
	"github.com/tripweave/tripweave/internal/adapter/globehop"
	"github.com/tripweave/tripweave/internal/adapter/roomly"
	"github.com/tripweave/tripweave/internal/adapter/skylarkair"
	"github.com/tripweave/tripweave/internal/adapter/venturex"
	"github.com/tripweave/tripweave/internal/api"
	"github.com/tripweave/tripweave/internal/api/middleware"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/database"
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/searchcache"
	"github.com/tripweave/tripweave/internal/selection"
	"github.com/tripweave/tripweave/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripweave-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TripWeave API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Load the provider catalog, seeding defaults on first boot
	repo := registry.NewPostgresRepository(pool)
	providers, err := repo.ListProviders(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load providers")
	}
	if len(providers) == 0 {
		log.Info().Msg("empty provider catalog, seeding defaults")
		for _, p := range registry.DefaultProviders() {
			if err := repo.UpsertProvider(ctx, p); err != nil {
				log.Fatal().Err(err).Str("provider", p.Code).Msg("failed to seed provider")
			}
		}
		providers, err = repo.ListProviders(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to reload providers")
		}
	}

	reg := registry.NewWithProviders(providers)
	log.Info().Int("providers", reg.Count()).Msg("provider registry loaded")

	rules := registry.NewRuleSet(nil)
	dbRules, err := repo.ListRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load routing rules")
	}
	if len(dbRules) == 0 {
		dbRules = registry.DefaultRules()
	}
	rules.Replace(dbRules)
	log.Info().Int("rules", len(dbRules)).Msg("routing rules loaded")

	// Supplier adapters. Token and session exchanges go through the
	// resilient client so a flaky credential endpoint is retried and a dead
	// one trips its own breaker; the search path's retry policy belongs to
	// the dispatch coordinator.
	adapters := adapter.NewSet(
		skylarkair.NewClient(skylarkair.ClientConfig{
			ClientID:     os.Getenv("SKYLARK_CLIENT_ID"),
			ClientSecret: os.Getenv("SKYLARK_CLIENT_SECRET"),
			BaseURL:      os.Getenv("SKYLARK_BASE_URL"),
			AuthClient:   resilience.NewClient(resilience.DefaultClientConfig("skylarkair-auth")),
			Logger:       log,
		}),
		globehop.NewClient(globehop.ClientConfig{
			APIKey:  os.Getenv("GLOBEHOP_API_KEY"),
			BaseURL: os.Getenv("GLOBEHOP_BASE_URL"),
			Logger:  log,
		}),
		roomly.NewClient(roomly.ClientConfig{
			APIKey:     os.Getenv("ROOMLY_API_KEY"),
			APISecret:  os.Getenv("ROOMLY_API_SECRET"),
			BaseURL:    os.Getenv("ROOMLY_BASE_URL"),
			AuthClient: resilience.NewClient(resilience.DefaultClientConfig("roomly-auth")),
			Logger:     log,
		}),
		driveo.NewClient(driveo.ClientConfig{
			APIKey:  os.Getenv("DRIVEO_API_KEY"),
			BaseURL: os.Getenv("DRIVEO_BASE_URL"),
			Logger:  log,
		}),
		venturex.NewClient(venturex.ClientConfig{
			APIKey:  os.Getenv("VENTUREX_API_KEY"),
			BaseURL: os.Getenv("VENTUREX_BASE_URL"),
			Logger:  log,
		}),
	)
	log.Info().Int("adapters", adapters.Len()).Msg("supplier adapters initialized")

	// Resilience, selection and dispatch
	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{}, log)

	selector := selection.NewEngine(selection.Config{
		Registry: reg,
		Rules:    rules,
		Breakers: breakers,
		Logger:   log,
	})

	dispatcher := dispatch.NewCoordinator(dispatch.Config{
		Adapters: adapters,
		Breakers: breakers,
		Logger:   log,
	})

	// Response cache and call budget
	cache := searchcache.New(searchcache.Config{Logger: log})

	budgetRepo := budget.NewPostgresRepository(pool)
	tracker, err := budget.NewTracker(ctx, budget.Config{
		Repository:   budgetRepo,
		Logger:       log,
		DailyLimit:   envInt64("BUDGET_DAILY_LIMIT", budget.DefaultDailyLimit),
		MonthlyLimit: envInt64("BUDGET_MONTHLY_LIMIT", budget.DefaultMonthlyLimit),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize call budget")
	}

	budgetCtx, budgetCancel := context.WithCancel(ctx)
	defer budgetCancel()
	go tracker.Run(budgetCtx)

	// Search engine
	searchEngine := engine.New(engine.Config{
		Registry:   reg,
		Rules:      rules,
		Repository: repo,
		Selector:   selector,
		Dispatcher: dispatcher,
		Cache:      cache,
		Budget:     tracker,
		Logger:     log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Engine:      searchEngine,
		Registry:    reg,
		Breakers:    breakers,
		Budget:      tracker,
		Pool:        pool,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
