package services

import (
	"sync/atomic"

	"github.com/petfriends/servicedemand/internal/analytics/regression"
)

// EstimatorRef holds the live estimator behind an atomic pointer so
// request goroutines keep serving from the old forest while a refresh
// trains and swaps in a new one. The version counter increments on every
// swap and is embedded in cache keys, which invalidates cached forecasts
// without an explicit flush.
type EstimatorRef struct {
	current atomic.Pointer[regression.Forest]
	version atomic.Int64
}

// NewEstimatorRef returns an empty reference; Current is nil until the
// first Swap.
func NewEstimatorRef() *EstimatorRef {
	return &EstimatorRef{}
}

// Current returns the live forest, or nil when none has been installed.
func (r *EstimatorRef) Current() *regression.Forest {
	return r.current.Load()
}

// Swap installs a new forest and returns the new version number.
func (r *EstimatorRef) Swap(f *regression.Forest) int64 {
	r.current.Store(f)
	return r.version.Add(1)
}

// Version returns the current model version. Version 0 means no model
// has ever been installed.
func (r *EstimatorRef) Version() int64 {
	return r.version.Load()
}
