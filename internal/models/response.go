package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// PredictResponse is the ad-hoc single-row prediction result.
type PredictResponse struct {
	PredictedBookingCount int `json:"predicted_booking_count"`
}

// DailyRecord is one (date, service) forecast row in the next7days view.
type DailyRecord struct {
	Date                  string  `json:"date"`
	DayOfWeek             int     `json:"day_of_week"`
	IsWeekend             int     `json:"is_weekend"`
	PromotionCount        int     `json:"promotion_count"`
	DiscountFlag          int     `json:"discount_flag"`
	BasePrice             float64 `json:"base_price"`
	DiscountAmount        float64 `json:"discount_amount"`
	ServiceID             int     `json:"service_id"`
	CategoryID            int     `json:"category_id"`
	ServiceName           string  `json:"service_name"`
	PredictedBookingCount int     `json:"predicted_booking_count"`
	Percentage            float64 `json:"percentage"`
}

// DailyForecast groups one date's records with the date total.
type DailyForecast struct {
	TotalPredictedBookingCount int           `json:"total_predicted_booking_count"`
	Records                    []DailyRecord `json:"records"`
}

// Next7DaysResponse maps ISO date strings to per-date forecasts.
type Next7DaysResponse map[string]DailyForecast

// WeeklyPrediction is one service's aggregate over the next week.
type WeeklyPrediction struct {
	ServiceID            int     `json:"service_id"`
	ServiceName          string  `json:"service_name"`
	CategoryID           int     `json:"category_id"`
	TotalBookingNextWeek int     `json:"total_booking_next_week"`
	Percentage           float64 `json:"percentage"`
}

// NextWeekResponse is the Monday-to-Sunday aggregate forecast.
type NextWeekResponse struct {
	NextWeekPeriod             string             `json:"next_week_period"`
	TotalPredictedBookingCount int                `json:"total_predicted_booking_count"`
	Predictions                []WeeklyPrediction `json:"predictions"`
}

// MonthlyPrediction is one service's aggregate over the next month.
type MonthlyPrediction struct {
	ServiceID             int     `json:"service_id"`
	ServiceName           string  `json:"service_name"`
	CategoryID            int     `json:"category_id"`
	TotalBookingNextMonth int     `json:"total_booking_next_month"`
	Percentage            float64 `json:"percentage"`
}

// NextMonthResponse is the full-calendar-month aggregate forecast.
type NextMonthResponse struct {
	NextMonthPeriod            string              `json:"next_month_period"`
	TotalPredictedBookingCount int                 `json:"total_predicted_booking_count"`
	Predictions                []MonthlyPrediction `json:"predictions"`
}

// RefreshResponse reports the outcome of a manual refresh trigger.
type RefreshResponse struct {
	Status string `json:"status"` // started, skipped
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
