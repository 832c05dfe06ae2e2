// Package grid builds and materializes the date x service feature grid
// used for training and forecasting.
package grid

import (
	"time"

	"github.com/petfriends/servicedemand/internal/pricing"
)

// Strategy selects how absent-booking days are treated during grid
// construction.
type Strategy string

const (
	// StrategyCartesian emits one row per (date, service) over the whole
	// date range, filling missing booking counts with 0. Zero-booking days
	// are treated as signal, so the estimator learns a true daily baseline.
	StrategyCartesian Strategy = "cartesian"

	// StrategyFactsOnly emits only rows observed upstream with a positive
	// booking count. No synthetic zero-rows; the learned baseline reflects
	// busy days only.
	StrategyFactsOnly Strategy = "facts_only"
)

// Valid reports whether s is a known construction strategy.
func (s Strategy) Valid() bool {
	return s == StrategyCartesian || s == StrategyFactsOnly
}

// BookingFact is one observed (date, service) booking aggregate from the
// source system, grouped at (date, service, price-window) granularity.
type BookingFact struct {
	Date           time.Time
	RawServiceID   string
	ServiceName    string
	RawCategoryID  string
	BasePrice      float64
	DiscountAmount float64
	Window         pricing.DiscountWindow
	DayOfWeek      int
	IsWeekend      int
	PromotionCount int
	DiscountFlag   int
	Price          float64
	BookingCount   int
}

// Service is one distinct reference-data row extracted from the facts.
// The same raw service id can appear more than once when its discount
// snapshot differs across fact rows; duplicates are merged downstream at
// forecast aggregation time, keyed by the dense ServiceID code.
type Service struct {
	RawID          string
	RawCategoryID  string
	ServiceID      int // dense code, assigned by Codes
	CategoryID     int // dense code, assigned by Codes
	Name           string
	BasePrice      float64
	DiscountAmount float64
	Window         pricing.DiscountWindow
}

// Row is a single materialized grid row. Identity columns carry dense
// integer codes, not raw identifiers.
type Row struct {
	Date           time.Time
	CategoryID     int
	ServiceID      int
	ServiceName    string
	BasePrice      float64
	DiscountAmount float64
	DiscountFrom   *time.Time
	DiscountTo     *time.Time
	DayOfWeek      int
	IsWeekend      int
	PromotionCount int
	DiscountFlag   int
	BookingCount   float64
	Price          float64
}

// FeatureColumns is the canonical estimator input order. Training and
// prediction must both use exactly this layout.
var FeatureColumns = []string{
	"day_of_week",
	"is_weekend",
	"promotion_count",
	"discount_flag",
	"base_price",
	"discount_amount",
	"service_id",
	"category_id",
}

// Features returns the row's feature vector in FeatureColumns order.
func (r Row) Features() []float64 {
	return []float64{
		float64(r.DayOfWeek),
		float64(r.IsWeekend),
		float64(r.PromotionCount),
		float64(r.DiscountFlag),
		r.BasePrice,
		r.DiscountAmount,
		float64(r.ServiceID),
		float64(r.CategoryID),
	}
}

// Grid is the materialized feature set.
type Grid struct {
	Rows []Row
}

// Features extracts the full feature matrix.
func (g *Grid) Features() [][]float64 {
	features := make([][]float64, len(g.Rows))
	for i, r := range g.Rows {
		features[i] = r.Features()
	}
	return features
}

// Targets extracts the raw booking counts, unclamped and unrounded.
func (g *Grid) Targets() []float64 {
	targets := make([]float64, len(g.Rows))
	for i, r := range g.Rows {
		targets[i] = r.BookingCount
	}
	return targets
}

// MaxDate returns the latest date present in the grid, or zero time when
// the grid is empty.
func (g *Grid) MaxDate() time.Time {
	var max time.Time
	for _, r := range g.Rows {
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return max
}

// DayOfWeek maps a calendar date to the Monday=0 .. Sunday=6 convention,
// independent of locale.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports 1 for Saturday and Sunday, 0 otherwise.
func IsWeekend(t time.Time) int {
	if DayOfWeek(t) >= 5 {
		return 1
	}
	return 0
}
