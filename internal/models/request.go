package models

// PredictRequest is a single feature row for ad-hoc prediction. Field
// order matches the estimator's canonical feature layout.
type PredictRequest struct {
	DayOfWeek      *int     `json:"day_of_week"`
	IsWeekend      *int     `json:"is_weekend"`
	PromotionCount *int     `json:"promotion_count"`
	DiscountFlag   *int     `json:"discount_flag"`
	BasePrice      *float64 `json:"base_price"`
	DiscountAmount *float64 `json:"discount_amount"`
	ServiceID      *int     `json:"service_id"`
	CategoryID     *int     `json:"category_id"`
}

// Validate checks presence and ranges of the feature fields.
func (r *PredictRequest) Validate() []string {
	var problems []string
	if r.DayOfWeek == nil {
		problems = append(problems, "day_of_week is required")
	} else if *r.DayOfWeek < 0 || *r.DayOfWeek > 6 {
		problems = append(problems, "day_of_week must be in 0..6")
	}
	if r.IsWeekend == nil {
		problems = append(problems, "is_weekend is required")
	} else if *r.IsWeekend != 0 && *r.IsWeekend != 1 {
		problems = append(problems, "is_weekend must be 0 or 1")
	}
	if r.PromotionCount == nil {
		problems = append(problems, "promotion_count is required")
	} else if *r.PromotionCount < 0 {
		problems = append(problems, "promotion_count cannot be negative")
	}
	if r.DiscountFlag == nil {
		problems = append(problems, "discount_flag is required")
	} else if *r.DiscountFlag != 0 && *r.DiscountFlag != 1 {
		problems = append(problems, "discount_flag must be 0 or 1")
	}
	if r.BasePrice == nil {
		problems = append(problems, "base_price is required")
	}
	if r.DiscountAmount == nil {
		problems = append(problems, "discount_amount is required")
	}
	if r.ServiceID == nil {
		problems = append(problems, "service_id is required")
	}
	if r.CategoryID == nil {
		problems = append(problems, "category_id is required")
	}
	return problems
}

// Features returns the request as a feature vector in canonical order.
// Call only after Validate returned no problems.
func (r *PredictRequest) Features() []float64 {
	return []float64{
		float64(*r.DayOfWeek),
		float64(*r.IsWeekend),
		float64(*r.PromotionCount),
		float64(*r.DiscountFlag),
		*r.BasePrice,
		*r.DiscountAmount,
		float64(*r.ServiceID),
		float64(*r.CategoryID),
	}
}
