package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/petfriends/servicedemand/internal/analytics/regression"
	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/extraction"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/pricing"
)

// ErrRefreshInProgress is returned when a refresh request arrives while
// a cycle is already running. The request is skipped, never queued.
var ErrRefreshInProgress = NewServiceError(CodeRefreshInProgress, "a refresh cycle is already running")

// RefreshService runs the extract, materialize and retrain cycle. The
// previous estimator keeps serving until the new one is fully trained;
// a failed cycle leaves it untouched.
type RefreshService struct {
	logger    *logging.Logger
	source    extraction.Source
	detector  *extraction.Detector
	gridStore *grid.Store
	modelPath string
	gridCfg   config.GridConfig
	trainCfg  config.TrainingConfig
	estimator *EstimatorRef
	running   atomic.Bool
	now       func() time.Time
}

// NewRefreshService creates a refresh service.
func NewRefreshService(logger *logging.Logger, source extraction.Source, gridStore *grid.Store,
	modelPath string, gridCfg config.GridConfig, trainCfg config.TrainingConfig,
	estimator *EstimatorRef) *RefreshService {
	return &RefreshService{
		logger:    logger,
		source:    source,
		detector:  extraction.NewDetector(logger, source, gridStore),
		gridStore: gridStore,
		modelPath: modelPath,
		gridCfg:   gridCfg,
		trainCfg:  trainCfg,
		estimator: estimator,
		now:       time.Now,
	}
}

// Running reports whether a cycle is currently executing.
func (s *RefreshService) Running() bool {
	return s.running.Load()
}

// Run executes one refresh cycle. Concurrent calls are rejected with
// ErrRefreshInProgress.
func (s *RefreshService) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer s.running.Store(false)

	return s.cycle(ctx)
}

func (s *RefreshService) cycle(ctx context.Context) error {
	started := s.now()

	if !s.detector.NeedsRefresh(ctx) {
		if s.estimator.Current() != nil {
			s.logger.Info("Materialized data is up to date, skipping refresh")
			return nil
		}
		// Fresh data but no estimator in memory: retrain from the
		// existing grid without touching the source.
		s.logger.Info("Materialized data is fresh but no estimator loaded, retraining")
		g, err := s.gridStore.Read()
		if err != nil {
			return NewServiceError(CodeRefreshFailed, "failed to read materialized data: "+err.Error())
		}
		return s.trainAndSwap(g, started)
	}

	facts, err := s.source.FetchFacts(ctx)
	if err != nil {
		s.logger.Error("Fact extraction failed", "error", err)
		return NewServiceError(CodeExtractionFailed, "failed to extract booking facts: "+err.Error())
	}
	s.logger.Info("Extracted booking facts", "facts", len(facts))

	codes := grid.BuildCodes(facts)
	services := grid.ServicesFromFacts(facts, codes)

	today := pricing.Day(s.now().UTC())
	from := today.AddDate(0, 0, -s.gridCfg.LookbackDays)

	g, err := grid.Build(services, facts, from, today, grid.Strategy(s.gridCfg.Strategy))
	if err != nil {
		return NewServiceError(CodeRefreshFailed, "failed to build feature grid: "+err.Error())
	}
	if len(g.Rows) == 0 {
		return NewServiceError(CodeNoData, "extraction produced no trainable rows")
	}

	if err := s.gridStore.Write(g); err != nil {
		return NewServiceError(CodeRefreshFailed, "failed to write feature grid: "+err.Error())
	}
	s.logger.Info("Materialized feature grid",
		"rows", len(g.Rows), "services", codes.ServiceCount(), "strategy", s.gridCfg.Strategy)

	return s.trainAndSwap(g, started)
}

// trainAndSwap trains a new estimator on the grid, persists it and
// installs it atomically. Persistence failure is logged but does not
// prevent the swap; the in-memory estimator is the serving source of
// truth.
func (s *RefreshService) trainAndSwap(g *grid.Grid, started time.Time) error {
	forest, err := s.train(g)
	if err != nil {
		s.logger.Error("Training failed, keeping previous estimator", "error", err)
		return NewServiceError(CodeRefreshFailed, "failed to train estimator: "+err.Error())
	}

	if err := forest.Save(s.modelPath); err != nil {
		s.logger.Warn("Failed to persist estimator", "path", s.modelPath, "error", err)
	}

	version := s.estimator.Swap(forest)
	s.logger.Info("Installed new estimator",
		"version", version,
		"trees", forest.Info.Trees,
		"data_points", forest.Info.DataPoints,
		"mae", forest.Info.MAE,
		"rmse", forest.Info.RMSE,
		"duration", s.now().Sub(started).String())
	return nil
}

func (s *RefreshService) train(g *grid.Grid) (*regression.Forest, error) {
	features := g.Features()
	targets := g.Targets()

	if s.trainCfg.Mode == "search" {
		space := regression.DefaultSearchSpace()
		space.Folds = s.trainCfg.Folds
		space.Seed = s.trainCfg.Seed
		return regression.FitWithSearch(features, targets, space)
	}

	return regression.Fit(features, targets, regression.Config{
		NEstimators:    s.trainCfg.NEstimators,
		MaxDepth:       s.trainCfg.MaxDepth,
		MinSamplesLeaf: s.trainCfg.MinSamplesLeaf,
		Sampling:       regression.FeatureSampling(s.trainCfg.Sampling),
		Seed:           s.trainCfg.Seed,
	})
}

// EnsureModel makes an estimator available at startup: load the
// persisted one, else retrain from the materialized grid, else run a
// full refresh cycle against the source.
func (s *RefreshService) EnsureModel(ctx context.Context) error {
	if forest, err := regression.Load(s.modelPath); err == nil {
		version := s.estimator.Swap(forest)
		s.logger.Info("Loaded persisted estimator",
			"path", s.modelPath, "version", version, "trees", forest.Info.Trees)
		return nil
	} else {
		s.logger.Info("No usable persisted estimator", "path", s.modelPath, "error", err)
	}

	if s.gridStore.Exists() {
		g, err := s.gridStore.Read()
		if err == nil && len(g.Rows) > 0 {
			s.logger.Info("Training estimator from materialized grid", "rows", len(g.Rows))
			if err := s.trainAndSwap(g, s.now()); err == nil {
				return nil
			}
		} else if err != nil {
			s.logger.Warn("Failed to read materialized grid", "error", err)
		}
	}

	s.logger.Info("Running full refresh cycle to bootstrap estimator")
	return s.Run(ctx)
}
