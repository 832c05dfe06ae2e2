package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petfriends/servicedemand/internal/analytics/regression"
	"github.com/petfriends/servicedemand/internal/cache"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.ErrorLevel)
}

// constantForest trains a forest whose every prediction is value,
// regardless of input. Constant targets make every leaf mean the same.
func constantForest(t *testing.T, value float64) *regression.Forest {
	t.Helper()
	features := [][]float64{
		{0, 0, 0, 0, 10, 0, 0, 0},
		{1, 0, 0, 0, 20, 0, 1, 0},
		{2, 0, 0, 0, 30, 0, 0, 1},
		{5, 1, 0, 1, 40, 5, 1, 1},
	}
	targets := []float64{value, value, value, value}

	forest, err := regression.Fit(features, targets, regression.Config{
		NEstimators:    5,
		MinSamplesLeaf: 1,
		Sampling:       regression.SamplingAll,
		Seed:           1,
	})
	require.NoError(t, err)
	return forest
}

func writeTestGrid(t *testing.T, rows []grid.Row) *grid.Store {
	t.Helper()
	store := grid.NewStore(filepath.Join(t.TempDir(), "data.csv"))
	require.NoError(t, store.Write(&grid.Grid{Rows: rows}))
	return store
}

func twoServiceRows() []grid.Row {
	base := grid.Row{
		Date:         date(2026, 8, 27),
		BookingCount: 1,
	}
	grooming := base
	grooming.ServiceID = 0
	grooming.ServiceName = "Grooming"
	grooming.CategoryID = 0
	grooming.BasePrice = 100

	boarding := base
	boarding.ServiceID = 1
	boarding.ServiceName = "Boarding"
	boarding.CategoryID = 1
	boarding.BasePrice = 50

	return []grid.Row{grooming, boarding}
}

func newTestForecastService(store *grid.Store, forest *regression.Forest, c cache.Cache) *ForecastService {
	ref := NewEstimatorRef()
	if forest != nil {
		ref.Swap(forest)
	}
	s := NewForecastService(testLogger(), store, ref, c, time.Minute)
	s.now = func() time.Time { return date(2026, 8, 28) }
	return s
}

func TestNext7Days(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	svc := newTestForecastService(store, constantForest(t, 3), cache.Noop{})

	resp, err := svc.Next7Days(context.Background())
	require.NoError(t, err)
	require.Len(t, resp, 7)

	day, ok := resp["2026-08-29"]
	require.True(t, ok, "first forecast day must be tomorrow")
	require.Len(t, day.Records, 2)

	assert.Equal(t, 6, day.TotalPredictedBookingCount)
	assert.Equal(t, 0, day.Records[0].ServiceID)
	assert.Equal(t, "Grooming", day.Records[0].ServiceName)
	assert.Equal(t, 3, day.Records[0].PredictedBookingCount)
	assert.Equal(t, 50.0, day.Records[0].Percentage)
	assert.Equal(t, "2026-08-29", day.Records[0].Date)

	// 2026-08-30 is a Sunday.
	sunday := resp["2026-08-30"]
	require.Len(t, sunday.Records, 2)
	assert.Equal(t, 6, sunday.Records[0].DayOfWeek)
	assert.Equal(t, 1, sunday.Records[0].IsWeekend)

	if _, ok := resp["2026-08-28"]; ok {
		t.Error("Today must not appear in the forecast window")
	}
}

func TestNext7Days_MergesDuplicateServiceSnapshots(t *testing.T) {
	rows := twoServiceRows()

	// Second reference row for service 0 with a different discount window.
	from := date(2026, 1, 1)
	to := date(2026, 1, 31)
	dup := rows[0]
	dup.DiscountFrom = &from
	dup.DiscountTo = &to
	dup.DiscountAmount = 10
	rows = append(rows, dup)

	store := writeTestGrid(t, rows)
	svc := newTestForecastService(store, constantForest(t, 3), cache.Noop{})

	resp, err := svc.Next7Days(context.Background())
	require.NoError(t, err)

	day := resp["2026-08-29"]
	require.Len(t, day.Records, 2, "duplicate snapshots must merge into one record")

	assert.Equal(t, 6, day.Records[0].PredictedBookingCount, "merged service sums both snapshots")
	assert.Equal(t, 3, day.Records[1].PredictedBookingCount)
	assert.Equal(t, 9, day.TotalPredictedBookingCount)
	assert.Equal(t, 66.67, day.Records[0].Percentage)
	assert.Equal(t, 33.33, day.Records[1].Percentage)
}

func TestNextWeek(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	svc := newTestForecastService(store, constantForest(t, 2), cache.Noop{})

	resp, err := svc.NextWeek(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-08-31 to 2026-09-06", resp.NextWeekPeriod)
	require.Len(t, resp.Predictions, 2)

	// 2 bookings per day over 7 days.
	assert.Equal(t, 14, resp.Predictions[0].TotalBookingNextWeek)
	assert.Equal(t, 14, resp.Predictions[1].TotalBookingNextWeek)
	assert.Equal(t, 28, resp.TotalPredictedBookingCount)
	assert.Equal(t, 50.0, resp.Predictions[0].Percentage)
}

func TestNextMonth(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	svc := newTestForecastService(store, constantForest(t, 2), cache.Noop{})

	resp, err := svc.NextMonth(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "September 2026", resp.NextMonthPeriod)
	require.Len(t, resp.Predictions, 2)

	// 2 bookings per day over September's 30 days.
	assert.Equal(t, 60, resp.Predictions[0].TotalBookingNextMonth)
	assert.Equal(t, 120, resp.TotalPredictedBookingCount)
	assert.Equal(t, 50.0, resp.Predictions[1].Percentage)
}

func TestForecast_ModelUnavailable(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	svc := newTestForecastService(store, nil, cache.Noop{})

	_, err := svc.Next7Days(context.Background())
	require.Error(t, err)

	serviceErr, ok := err.(*ServiceError)
	require.True(t, ok)
	assert.Equal(t, CodeModelUnavailable, serviceErr.Code)
}

func TestForecast_GridUnavailable(t *testing.T) {
	store := grid.NewStore(filepath.Join(t.TempDir(), "missing.csv"))
	svc := newTestForecastService(store, constantForest(t, 1), cache.Noop{})

	_, err := svc.NextWeek(context.Background())
	require.Error(t, err)

	serviceErr, ok := err.(*ServiceError)
	require.True(t, ok)
	assert.Equal(t, CodeGridUnavailable, serviceErr.Code)
}

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.data[key] = value
}

func TestForecast_ServesFromCache(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	c := newFakeCache()
	svc := newTestForecastService(store, constantForest(t, 3), c)

	first, err := svc.Next7Days(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, c.data, "response must be cached")

	// A grid read would now fail; a cache hit must not need one.
	require.NoError(t, os.Remove(store.Path()))

	second, err := svc.Next7Days(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestForecast_CacheKeyTracksModelVersion(t *testing.T) {
	store := writeTestGrid(t, twoServiceRows())
	c := newFakeCache()
	svc := newTestForecastService(store, constantForest(t, 3), c)

	_, err := svc.NextWeek(context.Background())
	require.NoError(t, err)
	require.Len(t, c.data, 1)

	// A new estimator version must miss the old entry and recompute.
	svc.estimator.Swap(constantForest(t, 5))

	resp, err := svc.NextWeek(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.data, 2)
	assert.Equal(t, 35, resp.Predictions[0].TotalBookingNextWeek)
}
