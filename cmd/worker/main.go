// Package main provides the entrypoint for the TripWeave background worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/adapter"
	"github.com/tripweave/tripweave/internal/adapter/driveo"
	"github.com/tripweave/tripweave/internal/adapter/globehop"
	"github.com/tripweave/tripweave/internal/adapter/roomly"
	"github.com/tripweave/tripweave/internal/adapter/skylarkair"
	"github.com/tripweave/tripweave/internal/adapter/venturex"
	"github.com/tripweave/tripweave/internal/budget"
	"github.com/tripweave/tripweave/internal/database"
	"github.com/tripweave/tripweave/internal/dispatch"
	"github.com/tripweave/tripweave/internal/engine"
	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/searchcache"
	"github.com/tripweave/tripweave/internal/selection"
	"github.com/tripweave/tripweave/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripweave-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting TripWeave worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// Load the provider catalog
	repo := registry.NewPostgresRepository(pool)
	providers, err := repo.ListProviders(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load providers")
	}
	reg := registry.NewWithProviders(providers)

	rules := registry.NewRuleSet(nil)
	if dbRules, rulesErr := repo.ListRules(ctx); rulesErr == nil {
		rules.Replace(dbRules)
	}

	// Supplier adapters for health probes. The worker never rides the
	// dispatch coordinator, so probes and token exchanges both go through
	// the resilient client.
	probeClient := func(name string) *resilience.Client {
		return resilience.NewClient(resilience.DefaultClientConfig(name + "-probe"))
	}
	adapters := adapter.NewSet(
		skylarkair.NewClient(skylarkair.ClientConfig{
			ClientID:     os.Getenv("SKYLARK_CLIENT_ID"),
			ClientSecret: os.Getenv("SKYLARK_CLIENT_SECRET"),
			BaseURL:      os.Getenv("SKYLARK_BASE_URL"),
			HTTPClient:   probeClient("skylarkair"),
			AuthClient:   resilience.NewClient(resilience.DefaultClientConfig("skylarkair-auth")),
			Logger:       log,
		}),
		globehop.NewClient(globehop.ClientConfig{
			APIKey:     os.Getenv("GLOBEHOP_API_KEY"),
			BaseURL:    os.Getenv("GLOBEHOP_BASE_URL"),
			HTTPClient: probeClient("globehop"),
			Logger:     log,
		}),
		roomly.NewClient(roomly.ClientConfig{
			APIKey:     os.Getenv("ROOMLY_API_KEY"),
			APISecret:  os.Getenv("ROOMLY_API_SECRET"),
			BaseURL:    os.Getenv("ROOMLY_BASE_URL"),
			HTTPClient: probeClient("roomly"),
			AuthClient: resilience.NewClient(resilience.DefaultClientConfig("roomly-auth")),
			Logger:     log,
		}),
		driveo.NewClient(driveo.ClientConfig{
			APIKey:     os.Getenv("DRIVEO_API_KEY"),
			BaseURL:    os.Getenv("DRIVEO_BASE_URL"),
			HTTPClient: probeClient("driveo"),
			Logger:     log,
		}),
		venturex.NewClient(venturex.ClientConfig{
			APIKey:     os.Getenv("VENTUREX_API_KEY"),
			BaseURL:    os.Getenv("VENTUREX_BASE_URL"),
			HTTPClient: probeClient("venturex"),
			Logger:     log,
		}),
	)

	breakers := resilience.NewBreakerSet(resilience.BreakerConfig{}, log)
	cache := searchcache.New(searchcache.Config{Logger: log})

	tracker, err := budget.NewTracker(ctx, budget.Config{
		Repository: budget.NewPostgresRepository(pool),
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize call budget")
	}

	searchEngine := engine.New(engine.Config{
		Registry:   reg,
		Rules:      rules,
		Repository: repo,
		Selector: selection.NewEngine(selection.Config{
			Registry: reg,
			Rules:    rules,
			Breakers: breakers,
			Logger:   log,
		}),
		Dispatcher: dispatch.NewCoordinator(dispatch.Config{
			Adapters: adapters,
			Breakers: breakers,
			Logger:   log,
		}),
		Cache:  cache,
		Budget: tracker,
		Logger: log,
	})

	jobs := worker.NewJobRunner(worker.JobConfig{
		Logger:   log,
		Engine:   searchEngine,
		Cache:    cache,
		Budget:   tracker,
		Adapters: adapters,
		Registry: reg,
	})

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start Pub/Sub message processing when configured; otherwise fall back
	// to a local ticker that refreshes the registry periodically.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "tripweave-jobs"
	}

	if projectID != "" {
		handler, handlerErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Jobs:             jobs,
			Logger:           log,
		})
		if handlerErr != nil {
			log.Fatal().Err(handlerErr).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if receiveErr := handler.Start(ctx); receiveErr != nil && ctx.Err() == nil {
				log.Fatal().Err(receiveErr).Msg("pubsub receive failed")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set, running local refresh loop")
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if refreshErr := jobs.RefreshRegistry(ctx); refreshErr != nil {
						log.Error().Err(refreshErr).Msg("registry refresh failed")
					}
					jobs.CheckProviderHealth(ctx)
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
