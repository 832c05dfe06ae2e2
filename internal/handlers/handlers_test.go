package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/petfriends/servicedemand/internal/analytics/regression"
	"github.com/petfriends/servicedemand/internal/cache"
	"github.com/petfriends/servicedemand/internal/config"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/middleware"
	"github.com/petfriends/servicedemand/internal/models"
	"github.com/petfriends/servicedemand/internal/services"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.ErrorLevel)
}

// staticSource feeds canned facts; an optional release channel blocks
// extraction until closed.
type staticSource struct {
	facts   []grid.BookingFact
	release chan struct{}
}

func (s *staticSource) FetchFacts(ctx context.Context) ([]grid.BookingFact, error) {
	if s.release != nil {
		<-s.release
	}
	return s.facts, nil
}

func (s *staticSource) MaxFactDate(ctx context.Context) (time.Time, error) {
	var max time.Time
	for _, f := range s.facts {
		if f.Date.After(max) {
			max = f.Date
		}
	}
	return max, nil
}

func testFacts() []grid.BookingFact {
	today := time.Now().UTC()
	var facts []grid.BookingFact
	for i := 1; i <= 7; i++ {
		d := today.AddDate(0, 0, -i)
		facts = append(facts, grid.BookingFact{
			Date: d, RawServiceID: "svc-a", ServiceName: "Grooming",
			RawCategoryID: "cat-1", BasePrice: 100, Price: 100,
			DayOfWeek: grid.DayOfWeek(d), IsWeekend: grid.IsWeekend(d),
			BookingCount: 3,
		})
	}
	return facts
}

func constantForest(t *testing.T, value float64) *regression.Forest {
	t.Helper()
	features := [][]float64{
		{0, 0, 0, 0, 10, 0, 0, 0},
		{1, 0, 0, 0, 20, 0, 1, 0},
		{2, 1, 0, 1, 30, 5, 0, 1},
	}
	forest, err := regression.Fit(features, []float64{value, value, value}, regression.Config{
		NEstimators: 5, MinSamplesLeaf: 1, Sampling: regression.SamplingAll, Seed: 1,
	})
	if err != nil {
		t.Fatalf("Failed to train test forest: %v", err)
	}
	return forest
}

type testEnv struct {
	app     *fiber.App
	store   *grid.Store
	refresh *services.RefreshService
	ref     *services.EstimatorRef
}

func setupTestApp(t *testing.T, forest *regression.Forest, source *staticSource) *testEnv {
	t.Helper()
	logger := testLogger()
	dir := t.TempDir()

	store := grid.NewStore(filepath.Join(dir, "data.csv"))
	rows := []grid.Row{
		{Date: time.Now().UTC(), ServiceID: 0, ServiceName: "Grooming", CategoryID: 0, BasePrice: 100, BookingCount: 3},
		{Date: time.Now().UTC(), ServiceID: 1, ServiceName: "Boarding", CategoryID: 1, BasePrice: 50, BookingCount: 5},
	}
	if err := store.Write(&grid.Grid{Rows: rows}); err != nil {
		t.Fatalf("Failed to write test grid: %v", err)
	}

	ref := services.NewEstimatorRef()
	if forest != nil {
		ref.Swap(forest)
	}

	if source == nil {
		source = &staticSource{facts: testFacts()}
	}

	forecastService := services.NewForecastService(logger, store, ref, cache.Noop{}, time.Minute)
	predictService := services.NewPredictService(logger, ref)
	refreshService := services.NewRefreshService(logger, source, store,
		filepath.Join(dir, "model.gob"),
		config.GridConfig{Strategy: "cartesian", LookbackDays: 7},
		config.TrainingConfig{Mode: "fixed", NEstimators: 3, MinSamplesLeaf: 1, Sampling: "all", Seed: 1},
		ref)

	h := New(logger, forecastService, predictService, refreshService)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logger)})
	app.Get("/health", h.Health)
	app.Get("/servicedemand/predict/next7days", h.Next7Days)
	app.Get("/servicedemand/predict/nextweek", h.NextWeek)
	app.Get("/servicedemand/predict/nextmonth", h.NextMonth)
	app.Post("/predict", h.Predict)
	app.Post("/admin/refresh", h.TriggerRefresh)
	app.Use(h.NotFound)

	return &testEnv{app: app, store: store, refresh: refreshService, ref: ref}
}

func TestHandler_Health(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var healthResp models.HealthResponse
	if err := json.Unmarshal(body, &healthResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if healthResp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", healthResp.Status)
	}
	if healthResp.Timestamp == "" {
		t.Error("Expected non-empty timestamp")
	}
}

func TestHandler_NotFound(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status %d, got %d", fiber.StatusNotFound, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if errResp.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected error code 'NOT_FOUND', got '%s'", errResp.Error.Code)
	}
	if errResp.Error.Path != "/nonexistent" {
		t.Errorf("Expected path '/nonexistent', got '%s'", errResp.Error.Path)
	}
}

func TestHandler_Next7Days(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	req := httptest.NewRequest("GET", "/servicedemand/predict/next7days", nil)
	resp, err := env.app.Test(req, 30000)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var forecast models.Next7DaysResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if len(forecast) != 7 {
		t.Fatalf("Expected 7 forecast days, got %d", len(forecast))
	}
	for date, day := range forecast {
		if len(day.Records) != 2 {
			t.Errorf("Date %s: expected 2 records, got %d", date, len(day.Records))
		}
		sum := 0
		for _, rec := range day.Records {
			sum += rec.PredictedBookingCount
		}
		if sum != day.TotalPredictedBookingCount {
			t.Errorf("Date %s: records sum %d != total %d", date, sum, day.TotalPredictedBookingCount)
		}
	}
}

func TestHandler_NextWeek(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 2), nil)

	req := httptest.NewRequest("GET", "/servicedemand/predict/nextweek", nil)
	resp, err := env.app.Test(req, 30000)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var forecast models.NextWeekResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if len(forecast.Predictions) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(forecast.Predictions))
	}
	// Constant estimator of 2 over a 7 day week.
	if forecast.Predictions[0].TotalBookingNextWeek != 14 {
		t.Errorf("Expected weekly total 14, got %d", forecast.Predictions[0].TotalBookingNextWeek)
	}
	if forecast.TotalPredictedBookingCount != 28 {
		t.Errorf("Expected grand total 28, got %d", forecast.TotalPredictedBookingCount)
	}
	if forecast.NextWeekPeriod == "" {
		t.Error("Expected non-empty week period")
	}
}

func TestHandler_NextMonth(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 1), nil)

	req := httptest.NewRequest("GET", "/servicedemand/predict/nextmonth", nil)
	resp, err := env.app.Test(req, 30000)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var forecast models.NextMonthResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if forecast.NextMonthPeriod == "" {
		t.Error("Expected non-empty month period")
	}
	if len(forecast.Predictions) != 2 {
		t.Errorf("Expected 2 predictions, got %d", len(forecast.Predictions))
	}
}

func TestHandler_Forecast_ModelUnavailable(t *testing.T) {
	env := setupTestApp(t, nil, nil)

	req := httptest.NewRequest("GET", "/servicedemand/predict/next7days", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", fiber.StatusServiceUnavailable, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if errResp.Error.Code != services.CodeModelUnavailable {
		t.Errorf("Expected error code %s, got %s", services.CodeModelUnavailable, errResp.Error.Code)
	}
}

func TestHandler_Predict(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	payload := `{
		"day_of_week": 2, "is_weekend": 0, "promotion_count": 0,
		"discount_flag": 1, "base_price": 100, "discount_amount": 20,
		"service_id": 0, "category_id": 1
	}`
	req := httptest.NewRequest("POST", "/predict", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected status %d, got %d", fiber.StatusOK, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var predictResp models.PredictResponse
	if err := json.Unmarshal(body, &predictResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if predictResp.PredictedBookingCount != 3 {
		t.Errorf("Expected prediction 3, got %d", predictResp.PredictedBookingCount)
	}
}

func TestHandler_Predict_MissingFields(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	req := httptest.NewRequest("POST", "/predict", bytes.NewBufferString(`{"day_of_week": 2}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", fiber.StatusBadRequest, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if errResp.Error.Code != services.CodeInvalidRequest {
		t.Errorf("Expected error code %s, got %s", services.CodeInvalidRequest, errResp.Error.Code)
	}
	if errResp.Error.Details == nil {
		t.Error("Expected validation problems in error details")
	}
}

func TestHandler_Predict_MalformedBody(t *testing.T) {
	env := setupTestApp(t, constantForest(t, 3), nil)

	req := httptest.NewRequest("POST", "/predict", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandler_TriggerRefresh(t *testing.T) {
	source := &staticSource{facts: testFacts(), release: make(chan struct{})}
	env := setupTestApp(t, constantForest(t, 3), source)

	// Force a full cycle so extraction blocks on the release channel.
	if err := os.Remove(env.store.Path()); err != nil {
		t.Fatalf("Failed to remove grid file: %v", err)
	}

	req := httptest.NewRequest("POST", "/admin/refresh", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("Expected status %d, got %d", fiber.StatusAccepted, resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var refreshResp models.RefreshResponse
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if refreshResp.Status != "started" {
		t.Errorf("Expected status 'started', got '%s'", refreshResp.Status)
	}

	// Wait until the background cycle holds the running flag, then a
	// second trigger must be skipped.
	deadline := time.Now().Add(2 * time.Second)
	for !env.refresh.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Refresh cycle never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req = httptest.NewRequest("POST", "/admin/refresh", nil)
	resp, err = env.app.Test(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if refreshResp.Status != "skipped" {
		t.Errorf("Expected status 'skipped', got '%s'", refreshResp.Status)
	}

	close(source.release)

	// Let the cycle finish so the temp dir can be cleaned up.
	deadline = time.Now().Add(5 * time.Second)
	for env.refresh.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Refresh cycle never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
