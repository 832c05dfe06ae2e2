// Command refresh runs one extract, materialize and retrain cycle and
// exits. Useful for seeding a deployment or cron-driven refreshes when
// the in-process loop is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/extraction"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/services"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	force := flag.Bool("force", false, "Re-extract and retrain even when data is up to date")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	source, err := extraction.Open(cfg.Database.DSN, cfg.Database.QueryTimeout)
	if err != nil {
		logger.Fatal("Failed to open fact source", "error", err)
	}
	defer func() { _ = source.Close() }()

	gridStore := grid.NewStore(filepath.Join(cfg.Data.Dir, cfg.Data.GridFile))
	modelPath := filepath.Join(cfg.Data.Dir, cfg.Data.ModelFile)

	if *force {
		// A missing grid file always counts as stale, so removing it
		// forces the full cycle.
		if err := os.Remove(gridStore.Path()); err != nil && !os.IsNotExist(err) {
			logger.Fatal("Failed to remove grid file", "path", gridStore.Path(), "error", err)
		}
	}

	refreshService := services.NewRefreshService(logger, source, gridStore,
		modelPath, cfg.Grid, cfg.Training, services.NewEstimatorRef())

	if err := refreshService.Run(context.Background()); err != nil {
		logger.Fatal("Refresh cycle failed", "error", err)
	}

	logger.Info("Refresh cycle complete",
		"grid", gridStore.Path(), "model", modelPath)
}
