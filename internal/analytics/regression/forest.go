package regression

import (
	"fmt"
	"math"
	"math/rand"
)

// FeatureSampling selects how many features each split considers.
type FeatureSampling string

const (
	// SamplingAll considers every feature at every split.
	SamplingAll FeatureSampling = "all"
	// SamplingSqrt considers sqrt(p) random features per split.
	SamplingSqrt FeatureSampling = "sqrt"
)

// Config holds the forest hyperparameters.
type Config struct {
	NEstimators    int             `mapstructure:"n_estimators"`
	MaxDepth       int             `mapstructure:"max_depth"` // 0 = unlimited
	MinSamplesLeaf int             `mapstructure:"min_samples_leaf"`
	Sampling       FeatureSampling `mapstructure:"feature_sampling"`
	Seed           int64           `mapstructure:"seed"`
}

// DefaultConfig returns the fixed-hyperparameter fast path configuration.
func DefaultConfig() Config {
	return Config{
		NEstimators:    100,
		MaxDepth:       0,
		MinSamplesLeaf: 2,
		Sampling:       SamplingAll,
		Seed:           42,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be at least 1, got %d", c.NEstimators)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative, got %d", c.MaxDepth)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", c.MinSamplesLeaf)
	}
	if c.Sampling != SamplingAll && c.Sampling != SamplingSqrt {
		return fmt.Errorf("feature_sampling must be %q or %q, got %q", SamplingAll, SamplingSqrt, c.Sampling)
	}
	return nil
}

// Forest is a bagged ensemble of regression trees. It is immutable once
// trained, so a *Forest can be shared across request goroutines without
// locking.
type Forest struct {
	Config Config
	Trees  []*Tree
	Info   ModelInfo
}

// Fit trains a forest on the feature matrix and raw targets. Each tree is
// grown on a bootstrap sample drawn with a per-tree deterministic seed.
func Fit(features [][]float64, targets []float64, cfg Config) (*Forest, error) {
	if len(features) == 0 {
		return nil, ErrNoData
	}
	if len(features) != len(targets) {
		return nil, fmt.Errorf("regression: %d feature rows but %d targets", len(features), len(targets))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numFeatures := len(features[0])
	maxFeatures := numFeatures
	if cfg.Sampling == SamplingSqrt {
		maxFeatures = int(math.Round(math.Sqrt(float64(numFeatures))))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	forest := &Forest{
		Config: cfg,
		Trees:  make([]*Tree, cfg.NEstimators),
	}

	n := len(features)
	for t := 0; t < cfg.NEstimators; t++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))

		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}

		forest.Trees[t] = growTree(features, targets, idx, treeParams{
			maxDepth:    cfg.MaxDepth,
			minLeaf:     cfg.MinSamplesLeaf,
			maxFeatures: maxFeatures,
			rng:         rng,
		})
	}

	fitted := forest.PredictBatch(features)
	forest.Info = ModelInfo{
		Algorithm:  "random_forest",
		Trees:      cfg.NEstimators,
		MaxDepth:   cfg.MaxDepth,
		MinLeaf:    cfg.MinSamplesLeaf,
		MAE:        CalculateMAE(targets, fitted),
		RMSE:       CalculateRMSE(targets, fitted),
		DataPoints: n,
	}
	return forest, nil
}

// Predict returns the ensemble estimate for one feature vector, clamped
// to be non-negative.
func (f *Forest) Predict(features []float64) float64 {
	sum := 0.0
	for _, tree := range f.Trees {
		sum += tree.Predict(features)
	}
	value := sum / float64(len(f.Trees))
	if value < 0 {
		return 0
	}
	return value
}

// PredictBatch predicts every row of the feature matrix.
func (f *Forest) PredictBatch(features [][]float64) []float64 {
	out := make([]float64, len(features))
	for i, row := range features {
		out[i] = f.Predict(row)
	}
	return out
}
