// Package regression provides the booking-count regression estimator:
// a random forest of variance-minimizing decision trees, trained over the
// materialized feature grid.
package regression

import (
	"errors"
	"math"
)

// ErrNoData is returned when training is attempted on an empty grid.
// Training must fail loudly rather than fit a degenerate model.
var ErrNoData = errors.New("regression: no training data")

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// ModelInfo contains metadata about a trained estimator.
type ModelInfo struct {
	Algorithm  string  `json:"algorithm"`
	Trees      int     `json:"trees"`
	MaxDepth   int     `json:"max_depth"`
	MinLeaf    int     `json:"min_leaf"`
	MAE        float64 `json:"mae,omitempty"` // in-sample Mean Absolute Error
	RMSE       float64 `json:"rmse,omitempty"`
	DataPoints int     `json:"data_points"`
}
