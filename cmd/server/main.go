package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/petfriends/servicedemand/internal/cache"
	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/extraction"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/refresh"
	"github.com/petfriends/servicedemand/internal/router"
	"github.com/petfriends/servicedemand/internal/services"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Service demand API starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Connect to the clinic fact source
	source, err := extraction.Open(cfg.Database.DSN, cfg.Database.QueryTimeout)
	if err != nil {
		logger.Fatal("Failed to open fact source", "error", err)
	}
	defer func() { _ = source.Close() }()

	// Optional forecast-response cache
	var responseCache cache.Cache = cache.Noop{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedis(cfg.Cache.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to cache", "url", cfg.Cache.URL, "error", err)
		}
		defer func() { _ = redisCache.Close() }()
		responseCache = redisCache
		logger.Info("Forecast cache enabled", "url", cfg.Cache.URL, "ttl", cfg.Cache.TTL.String())
	}

	// Wire stores and services
	gridStore := grid.NewStore(filepath.Join(cfg.Data.Dir, cfg.Data.GridFile))
	modelPath := filepath.Join(cfg.Data.Dir, cfg.Data.ModelFile)
	estimator := services.NewEstimatorRef()

	refreshService := services.NewRefreshService(logger, source, gridStore,
		modelPath, cfg.Grid, cfg.Training, estimator)
	forecastService := services.NewForecastService(logger, gridStore, estimator,
		responseCache, cfg.Cache.TTL)
	predictService := services.NewPredictService(logger, estimator)

	// Create context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Make an estimator available before accepting traffic; a failure
	// here is not fatal since the refresh loop keeps retrying and the
	// API reports MODEL_UNAVAILABLE until one lands.
	if err := refreshService.EnsureModel(ctx); err != nil {
		logger.Error("Failed to bootstrap estimator, serving without one", "error", err)
	}

	// Start background refresh loop
	var refreshLoop *refresh.Loop
	if cfg.Refresh.Enabled {
		refreshLoop = refresh.NewLoop(logger, refreshService, cfg.Refresh.Interval)
		refreshLoop.Start(ctx)
	} else {
		logger.Warn("Background refresh disabled - data will go stale without manual refreshes")
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	// Initialize router
	app := router.New(logger, forecastService, predictService, refreshService, cfg)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if refreshLoop != nil {
		refreshLoop.Stop()
	}

	// Graceful shutdown with 10 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
