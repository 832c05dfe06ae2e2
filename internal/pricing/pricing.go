// Package pricing resolves the effective price of a clinic service on a
// given date, taking the service's discount window into account.
package pricing

import "time"

// DiscountWindow is the inclusive date range during which a service's
// discounted price applies. Either bound may be nil, which means the
// service has no active discount window at all. Absent bounds are kept
// as nil rather than substituted with a sentinel date so that a target
// date can never accidentally satisfy the range check.
type DiscountWindow struct {
	From *time.Time
	To   *time.Time
}

// Active reports whether the window covers the given date. Comparison is
// at day granularity, both ends inclusive.
func (w DiscountWindow) Active(date time.Time) bool {
	if w.From == nil || w.To == nil {
		return false
	}
	d := Day(date)
	return !d.Before(Day(*w.From)) && !d.After(Day(*w.To))
}

// Resolve computes the discount flag and effective price for a service on
// the target date. When the window is active the effective price is
// basePrice - discountAmount, otherwise basePrice.
func Resolve(basePrice, discountAmount float64, window DiscountWindow, date time.Time) (discountFlag int, price float64) {
	if window.Active(date) {
		return 1, basePrice - discountAmount
	}
	return 0, basePrice
}

// Day strips the time-of-day component, keeping year/month/day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
