package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/grid"
)

type fakeSource struct {
	facts      []grid.BookingFact
	maxDate    time.Time
	fetchErr   error
	fetchCalls int
}

func (s *fakeSource) FetchFacts(ctx context.Context) ([]grid.BookingFact, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.facts, nil
}

func (s *fakeSource) MaxFactDate(ctx context.Context) (time.Time, error) {
	return s.maxDate, nil
}

func testFacts(today time.Time) []grid.BookingFact {
	var facts []grid.BookingFact
	for i := 1; i <= 10; i++ {
		d := today.AddDate(0, 0, -i)
		facts = append(facts,
			grid.BookingFact{
				Date: d, RawServiceID: "svc-a", ServiceName: "Grooming",
				RawCategoryID: "cat-1", BasePrice: 100, Price: 100,
				DayOfWeek: grid.DayOfWeek(d), IsWeekend: grid.IsWeekend(d),
				BookingCount: 3,
			},
			grid.BookingFact{
				Date: d, RawServiceID: "svc-b", ServiceName: "Boarding",
				RawCategoryID: "cat-2", BasePrice: 50, Price: 50,
				DayOfWeek: grid.DayOfWeek(d), IsWeekend: grid.IsWeekend(d),
				BookingCount: 5,
			},
		)
	}
	return facts
}

func newTestRefreshService(t *testing.T, source *fakeSource) *RefreshService {
	t.Helper()
	dir := t.TempDir()
	store := grid.NewStore(filepath.Join(dir, "data.csv"))

	svc := NewRefreshService(testLogger(), source, store,
		filepath.Join(dir, "model.gob"),
		config.GridConfig{Strategy: "cartesian", LookbackDays: 14},
		config.TrainingConfig{
			Mode: "fixed", NEstimators: 5, MinSamplesLeaf: 2, Sampling: "all", Seed: 42,
		},
		NewEstimatorRef())
	svc.now = func() time.Time { return date(2026, 8, 28) }
	return svc
}

func TestRefresh_FullCycle(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)

	require.NoError(t, svc.Run(context.Background()))

	assert.True(t, svc.gridStore.Exists(), "grid must be materialized")
	g, err := svc.gridStore.Read()
	require.NoError(t, err)
	// 15 days inclusive x 2 services under the cartesian strategy.
	assert.Len(t, g.Rows, 30)

	forest := svc.estimator.Current()
	require.NotNil(t, forest, "estimator must be installed")
	assert.Equal(t, int64(1), svc.estimator.Version())
	assert.Equal(t, 5, forest.Info.Trees)

	assert.False(t, svc.Running())
}

func TestRefresh_SkipsWhenUpToDate(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)

	require.NoError(t, svc.Run(context.Background()))
	require.Equal(t, 1, source.fetchCalls)

	// Remote has nothing newer than the grid's max date (today).
	source.maxDate = today
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 1, source.fetchCalls, "up-to-date cycle must not re-extract")
	assert.Equal(t, int64(1), svc.estimator.Version(), "up-to-date cycle must not retrain")
}

func TestRefresh_RetrainsWhenNewDataArrives(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)

	require.NoError(t, svc.Run(context.Background()))

	source.maxDate = today.AddDate(0, 0, 1)
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, 2, source.fetchCalls)
	assert.Equal(t, int64(2), svc.estimator.Version())
}

func TestRefresh_RejectsConcurrentRun(t *testing.T) {
	source := &fakeSource{facts: testFacts(date(2026, 8, 28))}
	svc := newTestRefreshService(t, source)

	svc.running.Store(true)
	err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	svc.running.Store(false)
	assert.NoError(t, svc.Run(context.Background()))
}

func TestRefresh_ExtractionFailureKeepsPreviousEstimator(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)

	require.NoError(t, svc.Run(context.Background()))
	previous := svc.estimator.Current()

	source.maxDate = today.AddDate(0, 0, 1)
	source.fetchErr = errors.New("connection refused")

	err := svc.Run(context.Background())
	require.Error(t, err)
	serviceErr, ok := err.(*ServiceError)
	require.True(t, ok)
	assert.Equal(t, CodeExtractionFailed, serviceErr.Code)

	assert.Same(t, previous, svc.estimator.Current(), "failed cycle must not touch the estimator")
	assert.False(t, svc.Running(), "running flag must clear after a failed cycle")
}

func TestRefresh_NoFactsIsNoData(t *testing.T) {
	source := &fakeSource{facts: nil, maxDate: date(2026, 8, 27)}
	svc := newTestRefreshService(t, source)

	err := svc.Run(context.Background())
	require.Error(t, err)
	serviceErr, ok := err.(*ServiceError)
	require.True(t, ok)
	assert.Equal(t, CodeNoData, serviceErr.Code)
	assert.Nil(t, svc.estimator.Current())
}

func TestEnsureModel_LoadsPersistedEstimator(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)
	require.NoError(t, svc.Run(context.Background()))

	// A fresh service against the same paths must start from the
	// persisted model without touching the source.
	restarted := NewRefreshService(testLogger(), &fakeSource{fetchErr: errors.New("unreachable")},
		svc.gridStore, svc.modelPath, svc.gridCfg, svc.trainCfg, NewEstimatorRef())
	restarted.now = svc.now

	require.NoError(t, restarted.EnsureModel(context.Background()))
	assert.NotNil(t, restarted.estimator.Current())
}

func TestEnsureModel_TrainsFromGridWhenModelMissing(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)
	require.NoError(t, svc.Run(context.Background()))

	restarted := NewRefreshService(testLogger(), &fakeSource{fetchErr: errors.New("unreachable")},
		svc.gridStore, filepath.Join(t.TempDir(), "absent.gob"), svc.gridCfg, svc.trainCfg,
		NewEstimatorRef())
	restarted.now = svc.now

	require.NoError(t, restarted.EnsureModel(context.Background()))
	assert.NotNil(t, restarted.estimator.Current())
}

func TestEnsureModel_BootstrapsFromSource(t *testing.T) {
	today := date(2026, 8, 28)
	source := &fakeSource{facts: testFacts(today), maxDate: today.AddDate(0, 0, -1)}
	svc := newTestRefreshService(t, source)

	require.NoError(t, svc.EnsureModel(context.Background()))
	assert.Equal(t, 1, source.fetchCalls)
	assert.NotNil(t, svc.estimator.Current())
	assert.True(t, svc.gridStore.Exists())
}
