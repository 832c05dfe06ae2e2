package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/petfriends/servicedemand/internal/cache"
	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/models"
	"github.com/petfriends/servicedemand/internal/pricing"
)

// ForecastService produces the horizon forecasts from the materialized
// grid's service reference rows and the live estimator.
type ForecastService struct {
	logger    *logging.Logger
	store     *grid.Store
	estimator *EstimatorRef
	cache     cache.Cache
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewForecastService creates a forecast service.
func NewForecastService(logger *logging.Logger, store *grid.Store, estimator *EstimatorRef, c cache.Cache, cacheTTL time.Duration) *ForecastService {
	return &ForecastService{
		logger:    logger,
		store:     store,
		estimator: estimator,
		cache:     c,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// Next7Days forecasts each of the seven days strictly after today,
// with per-service records and per-date totals.
func (s *ForecastService) Next7Days(ctx context.Context) (models.Next7DaysResponse, error) {
	today := s.today()

	var cached models.Next7DaysResponse
	key := s.cacheKey("next7days", today)
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	forest, services, err := s.inputs()
	if err != nil {
		return nil, err
	}

	resp := make(models.Next7DaysResponse, 7)
	for _, date := range next7Days(today) {
		dateStr := date.Format(grid.DateLayout)

		byID := make(map[int]*models.DailyRecord)
		var order []int
		for _, svc := range services {
			row := grid.FutureRow(svc, date)
			predicted := int(math.Round(forest.Predict(row.Features())))

			// A service whose discount snapshot changed mid-history has
			// several reference rows sharing one code; their per-day
			// predictions merge into a single record.
			if rec, ok := byID[svc.ServiceID]; ok {
				rec.PredictedBookingCount += predicted
				continue
			}
			byID[svc.ServiceID] = &models.DailyRecord{
				Date:                  dateStr,
				DayOfWeek:             row.DayOfWeek,
				IsWeekend:             row.IsWeekend,
				PromotionCount:        row.PromotionCount,
				DiscountFlag:          row.DiscountFlag,
				BasePrice:             row.BasePrice,
				DiscountAmount:        row.DiscountAmount,
				ServiceID:             svc.ServiceID,
				CategoryID:            svc.CategoryID,
				ServiceName:           svc.Name,
				PredictedBookingCount: predicted,
			}
			order = append(order, svc.ServiceID)
		}

		total := 0
		for _, id := range order {
			total += byID[id].PredictedBookingCount
		}

		records := make([]models.DailyRecord, 0, len(order))
		for _, id := range order {
			rec := byID[id]
			rec.Percentage = share(rec.PredictedBookingCount, total)
			records = append(records, *rec)
		}

		resp[dateStr] = models.DailyForecast{
			TotalPredictedBookingCount: total,
			Records:                    records,
		}
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// NextWeek forecasts the upcoming Monday-to-Sunday week, aggregated per
// service. Raw per-day estimates accumulate unrounded and each service
// total is rounded once at emission.
func (s *ForecastService) NextWeek(ctx context.Context) (*models.NextWeekResponse, error) {
	today := s.today()

	var cached models.NextWeekResponse
	key := s.cacheKey("nextweek", today)
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	forest, services, err := s.inputs()
	if err != nil {
		return nil, err
	}

	dates := nextWeekDates(today)
	totals, grand := s.aggregateRange(forest, services, dates)

	predictions := make([]models.WeeklyPrediction, 0, len(totals))
	for _, t := range totals {
		predictions = append(predictions, models.WeeklyPrediction{
			ServiceID:            t.serviceID,
			ServiceName:          t.name,
			CategoryID:           t.categoryID,
			TotalBookingNextWeek: t.total,
			Percentage:           share(t.total, grand),
		})
	}

	resp := &models.NextWeekResponse{
		NextWeekPeriod: fmt.Sprintf("%s to %s",
			dates[0].Format(grid.DateLayout), dates[len(dates)-1].Format(grid.DateLayout)),
		TotalPredictedBookingCount: grand,
		Predictions:                predictions,
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// NextMonth forecasts the next full calendar month, aggregated per
// service.
func (s *ForecastService) NextMonth(ctx context.Context) (*models.NextMonthResponse, error) {
	today := s.today()

	var cached models.NextMonthResponse
	key := s.cacheKey("nextmonth", today)
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	forest, services, err := s.inputs()
	if err != nil {
		return nil, err
	}

	dates := nextMonthDates(today)
	totals, grand := s.aggregateRange(forest, services, dates)

	predictions := make([]models.MonthlyPrediction, 0, len(totals))
	for _, t := range totals {
		predictions = append(predictions, models.MonthlyPrediction{
			ServiceID:             t.serviceID,
			ServiceName:           t.name,
			CategoryID:            t.categoryID,
			TotalBookingNextMonth: t.total,
			Percentage:            share(t.total, grand),
		})
	}

	resp := &models.NextMonthResponse{
		NextMonthPeriod:            dates[0].Format("January 2006"),
		TotalPredictedBookingCount: grand,
		Predictions:                predictions,
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// serviceTotal is one service's aggregate over a horizon.
type serviceTotal struct {
	serviceID  int
	categoryID int
	name       string
	total      int
}

// aggregateRange sums raw per-day predictions per service across the
// dates, merging duplicate reference rows by service code, then rounds
// each service total once. The grand total is the sum of the rounded
// service totals, so the response is internally consistent.
func (s *ForecastService) aggregateRange(forest predictor, services []grid.Service, dates []time.Time) ([]serviceTotal, int) {
	raw := make(map[int]float64)
	meta := make(map[int]grid.Service)
	var order []int

	for _, svc := range services {
		if _, ok := meta[svc.ServiceID]; !ok {
			meta[svc.ServiceID] = svc
			order = append(order, svc.ServiceID)
		}
		for _, date := range dates {
			row := grid.FutureRow(svc, date)
			raw[svc.ServiceID] += forest.Predict(row.Features())
		}
	}
	sort.Ints(order)

	totals := make([]serviceTotal, 0, len(order))
	grand := 0
	for _, id := range order {
		svc := meta[id]
		total := int(math.Round(raw[id]))
		grand += total
		totals = append(totals, serviceTotal{
			serviceID:  id,
			categoryID: svc.CategoryID,
			name:       svc.Name,
			total:      total,
		})
	}
	return totals, grand
}

// predictor is the estimator surface the forecast paths need.
type predictor interface {
	Predict(features []float64) float64
}

// inputs loads the live estimator and the service reference rows from
// the materialized grid.
func (s *ForecastService) inputs() (predictor, []grid.Service, error) {
	forest := s.estimator.Current()
	if forest == nil {
		return nil, nil, NewServiceError(CodeModelUnavailable, "no trained model available yet")
	}

	if !s.store.Exists() {
		return nil, nil, NewServiceError(CodeGridUnavailable, "no materialized data available yet")
	}
	g, err := s.store.Read()
	if err != nil {
		s.logger.Error("Failed to read grid for forecasting", "error", err)
		return nil, nil, NewServiceError(CodeGridUnavailable, "failed to read materialized data")
	}

	services := grid.ServicesFromGrid(g)
	if len(services) == 0 {
		return nil, nil, NewServiceError(CodeNoData, "materialized data contains no services")
	}
	return forest, services, nil
}

func (s *ForecastService) today() time.Time {
	return pricing.Day(s.now().UTC())
}

func (s *ForecastService) cacheKey(horizon string, today time.Time) string {
	return fmt.Sprintf("forecast:%s:%s:v%d", horizon, today.Format(grid.DateLayout), s.estimator.Version())
}

func (s *ForecastService) fromCache(ctx context.Context, key string, out interface{}) bool {
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *ForecastService) toCache(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, data, s.cacheTTL)
}

// share returns count's percentage of total rounded to two decimals,
// and 0 when the total is zero.
func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
