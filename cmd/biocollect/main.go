// Command biocollect collects protein data from the UniProt and InterPro
// APIs under rate limiting, retry, and caching governance, persists it, and
// serves a status and query HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"biocollect/internal/api"
	"biocollect/internal/clients"
	"biocollect/internal/collector"
	"biocollect/internal/config"
	"biocollect/internal/logger"
	"biocollect/internal/models"
	"biocollect/internal/observability"
	"biocollect/internal/ratelimit"
	"biocollect/internal/respcache"
	"biocollect/internal/retry"
	"biocollect/internal/storage"
	"biocollect/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	entriesFlag = flag.String("entries", "", "Comma-separated PFAM/InterPro entry accessions to collect")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	// Rate limit manager with one limiter per upstream API
	rateLimits := ratelimit.NewManager(cfg.RateLimit.EnableMonitoring, cfg.RateLimit.EnableReporting, log)
	for apiName, rate := range map[string]models.APIRateConfig{
		models.APINameUniProt:  cfg.RateLimit.UniProt,
		models.APINameInterPro: cfg.RateLimit.InterPro,
	} {
		rateLimits.CreateLimiter(apiName, ratelimit.Config{
			RequestsPerSecond:          rate.RequestsPerSecond,
			BurstLimit:                 rate.BurstLimit,
			BurstWindow:                rate.BurstWindow,
			ViolationInitialDelay:      cfg.RateLimit.ViolationInitialDelay,
			ViolationBackoffMultiplier: cfg.RateLimit.ViolationBackoffMultiplier,
			ViolationMaxDelay:          cfg.RateLimit.ViolationMaxDelay,
			SoftLimitThreshold:         cfg.RateLimit.SoftLimitThreshold,
			EnableMonitoring:           cfg.RateLimit.EnableMonitoring,
			EnableReporting:            cfg.RateLimit.EnableReporting,
		})
	}

	// Response cache
	var cache *respcache.Cache
	if cfg.Cache.Enabled {
		cache = respcache.New(cfg.Cache, log)
		defer cache.Close()
	}

	// Retry controller shared by all API clients
	retrier := retry.NewController(retry.Config{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      cfg.Retry.InitialDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		MaxDelay:          cfg.Retry.MaxDelay,
	}, nil, log)

	deps := clients.Deps{
		RateLimits: rateLimits,
		Retrier:    retrier,
		Cache:      cache,
		Logger:     log,
	}
	uniprot := clients.NewUniProtClient(cfg.API, deps)
	interpro := clients.NewInterProClient(cfg.API, deps)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kick off collection when entries were requested
	if *entriesFlag != "" {
		accessions := splitAccessions(*entriesFlag)
		coll := collector.New(cfg.Collection, interpro, uniprot, activeStorage, log)

		go func() {
			report, err := coll.Run(rootCtx, accessions)
			if err != nil {
				slog.Error("Collection run failed", "error", err, "run_id", report.RunID)
				return
			}
			slog.Info("Collection run complete",
				"run_id", report.RunID,
				"entries", report.EntriesCollected,
				"proteins", report.ProteinsCollected,
				"isoforms", report.IsoformsCollected,
				"skipped", report.Skipped,
				"duration", report.Duration,
			)
		}()
	}

	// Setup routes with middleware
	handlers := api.NewHandlers(activeStorage, rateLimits, cache, log)
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "version", version.GetInfo().Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// splitAccessions parses the comma-separated entries flag.
func splitAccessions(raw string) []string {
	parts := strings.Split(raw, ",")
	accessions := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			accessions = append(accessions, trimmed)
		}
	}
	return accessions
}
