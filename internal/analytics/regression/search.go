package regression

import (
	"math"
	"math/rand"
)

// SearchSpace is the discrete hyperparameter grid explored by FitWithSearch.
type SearchSpace struct {
	NEstimators    []int
	MaxDepths      []int
	MinSamplesLeaf []int
	Sampling       []FeatureSampling
	Folds          int
	Seed           int64
}

// DefaultSearchSpace returns a small grid that keeps search time bounded.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		NEstimators:    []int{50, 100},
		MaxDepths:      []int{0, 10},
		MinSamplesLeaf: []int{2, 5},
		Sampling:       []FeatureSampling{SamplingAll, SamplingSqrt},
		Folds:          3,
		Seed:           42,
	}
}

// FitWithSearch selects the best configuration by k-fold cross-validation
// minimizing mean absolute error, then refits that configuration on the
// full dataset. The fold models are for selection only and are discarded;
// the returned estimator always sees every row.
func FitWithSearch(features [][]float64, targets []float64, space SearchSpace) (*Forest, error) {
	if len(features) == 0 {
		return nil, ErrNoData
	}
	if space.Folds < 2 {
		space.Folds = 3
	}

	folds := splitFolds(len(features), space.Folds, space.Seed)

	best := DefaultConfig()
	bestMAE := math.Inf(1)

	for _, n := range space.NEstimators {
		for _, depth := range space.MaxDepths {
			for _, leaf := range space.MinSamplesLeaf {
				for _, sampling := range space.Sampling {
					cfg := Config{
						NEstimators:    n,
						MaxDepth:       depth,
						MinSamplesLeaf: leaf,
						Sampling:       sampling,
						Seed:           space.Seed,
					}
					mae, err := crossValidate(features, targets, folds, cfg)
					if err != nil {
						return nil, err
					}
					if mae < bestMAE {
						bestMAE = mae
						best = cfg
					}
				}
			}
		}
	}

	return Fit(features, targets, best)
}

// crossValidate returns the mean MAE across the folds for one config.
func crossValidate(features [][]float64, targets []float64, folds [][]int, cfg Config) (float64, error) {
	total := 0.0
	counted := 0

	for k := range folds {
		var trainX [][]float64
		var trainY []float64
		for j, fold := range folds {
			if j == k {
				continue
			}
			for _, i := range fold {
				trainX = append(trainX, features[i])
				trainY = append(trainY, targets[i])
			}
		}
		if len(trainX) == 0 || len(folds[k]) == 0 {
			continue
		}

		forest, err := Fit(trainX, trainY, cfg)
		if err != nil {
			return 0, err
		}

		var actual, predicted []float64
		for _, i := range folds[k] {
			actual = append(actual, targets[i])
			predicted = append(predicted, forest.Predict(features[i]))
		}
		total += CalculateMAE(actual, predicted)
		counted++
	}

	if counted == 0 {
		return math.Inf(1), nil
	}
	return total / float64(counted), nil
}

// splitFolds shuffles the row indices deterministically and slices them
// into k roughly equal folds.
func splitFolds(n, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	if k > n {
		k = n
	}
	folds := make([][]int, k)
	for i, idx := range perm {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}
