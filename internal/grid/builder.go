package grid

import (
	"fmt"
	"sort"
	"time"

	"github.com/petfriends/servicedemand/internal/pricing"
)

// ServicesFromFacts derives the distinct service reference rows from the
// extracted facts and assigns dense codes. Distinctness is over the full
// reference tuple (raw id, name, category, base price, discount snapshot),
// so a service whose discount window changed mid-history yields two rows
// sharing one ServiceID code.
func ServicesFromFacts(facts []BookingFact, codes Codes) []Service {
	seen := make(map[string]struct{})
	var services []Service
	for _, f := range facts {
		key := fmt.Sprintf("%s|%s|%s|%v|%v|%s|%s",
			f.RawServiceID, f.ServiceName, f.RawCategoryID,
			f.BasePrice, f.DiscountAmount,
			formatBound(f.Window.From), formatBound(f.Window.To))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		services = append(services, Service{
			RawID:          f.RawServiceID,
			RawCategoryID:  f.RawCategoryID,
			ServiceID:      codes.ServiceCode(f.RawServiceID),
			CategoryID:     codes.CategoryCode(f.RawCategoryID),
			Name:           f.ServiceName,
			BasePrice:      f.BasePrice,
			DiscountAmount: f.DiscountAmount,
			Window:         f.Window,
		})
	}

	// Stable output order regardless of fact order.
	sort.Slice(services, func(i, j int) bool {
		if services[i].ServiceID != services[j].ServiceID {
			return services[i].ServiceID < services[j].ServiceID
		}
		return formatBound(services[i].Window.From) < formatBound(services[j].Window.From)
	})
	return services
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Build constructs the feature grid over [from, to] inclusive using the
// given strategy.
//
// Cartesian: every date x every service, left-joined against facts on the
// (date, raw service id) keys only, missing counts filled with 0. The
// discount flag and price are recomputed from the service's window rather
// than copied from the facts, so the grid stays consistent with reference
// data even when the window changed after extraction. PromotionCount is
// fixed at 0: the calendar-level promotion signal cannot be reconstructed
// without replaying the upstream promotion join.
//
// FactsOnly: only rows with a positive observed booking count, with the
// discount flag and price taken as extracted.
func Build(services []Service, facts []BookingFact, from, to time.Time, strategy Strategy) (*Grid, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown grid strategy: %s", strategy)
	}
	if strategy == StrategyFactsOnly {
		return buildFactsOnly(facts), nil
	}
	return buildCartesian(services, facts, from, to), nil
}

func buildCartesian(services []Service, facts []BookingFact, from, to time.Time) *Grid {
	type factKey struct {
		date    string
		service string
	}
	counts := make(map[factKey]int, len(facts))
	for _, f := range facts {
		key := factKey{pricing.Day(f.Date).Format(DateLayout), f.RawServiceID}
		counts[key] += f.BookingCount
	}

	g := &Grid{}
	for d := pricing.Day(from); !d.After(pricing.Day(to)); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(DateLayout)
		for _, svc := range services {
			flag, price := pricing.Resolve(svc.BasePrice, svc.DiscountAmount, svc.Window, d)
			g.Rows = append(g.Rows, Row{
				Date:           d,
				CategoryID:     svc.CategoryID,
				ServiceID:      svc.ServiceID,
				ServiceName:    svc.Name,
				BasePrice:      svc.BasePrice,
				DiscountAmount: svc.DiscountAmount,
				DiscountFrom:   svc.Window.From,
				DiscountTo:     svc.Window.To,
				DayOfWeek:      DayOfWeek(d),
				IsWeekend:      IsWeekend(d),
				PromotionCount: 0,
				DiscountFlag:   flag,
				BookingCount:   float64(counts[factKey{dateStr, svc.RawID}]),
				Price:          price,
			})
		}
	}
	return g
}

func buildFactsOnly(facts []BookingFact) *Grid {
	codes := BuildCodes(facts)

	g := &Grid{}
	for _, f := range facts {
		if f.BookingCount <= 0 {
			continue
		}
		d := pricing.Day(f.Date)
		g.Rows = append(g.Rows, Row{
			Date:           d,
			CategoryID:     codes.CategoryCode(f.RawCategoryID),
			ServiceID:      codes.ServiceCode(f.RawServiceID),
			ServiceName:    f.ServiceName,
			BasePrice:      f.BasePrice,
			DiscountAmount: f.DiscountAmount,
			DiscountFrom:   f.Window.From,
			DiscountTo:     f.Window.To,
			DayOfWeek:      DayOfWeek(d),
			IsWeekend:      IsWeekend(d),
			PromotionCount: f.PromotionCount,
			DiscountFlag:   f.DiscountFlag,
			BookingCount:   float64(f.BookingCount),
			Price:          f.Price,
		})
	}
	return g
}

// FutureRow builds a single forecast-mode row for a service on a future
// date. The discount flag and price are always recomputed through the
// resolver since the window may or may not cover the forecast horizon.
func FutureRow(svc Service, date time.Time) Row {
	d := pricing.Day(date)
	flag, price := pricing.Resolve(svc.BasePrice, svc.DiscountAmount, svc.Window, d)
	return Row{
		Date:           d,
		CategoryID:     svc.CategoryID,
		ServiceID:      svc.ServiceID,
		ServiceName:    svc.Name,
		BasePrice:      svc.BasePrice,
		DiscountAmount: svc.DiscountAmount,
		DiscountFrom:   svc.Window.From,
		DiscountTo:     svc.Window.To,
		DayOfWeek:      DayOfWeek(d),
		IsWeekend:      IsWeekend(d),
		PromotionCount: 0,
		DiscountFlag:   flag,
		Price:          price,
	}
}
