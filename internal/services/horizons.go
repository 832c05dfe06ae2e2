package services

import (
	"time"

	"github.com/petfriends/servicedemand/internal/grid"
)

// next7Days returns the seven calendar days strictly after today.
func next7Days(today time.Time) []time.Time {
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = today.AddDate(0, 0, i+1)
	}
	return dates
}

// nextMonday returns the first Monday strictly after today. A Monday
// today yields the Monday a full week ahead, never today itself.
func nextMonday(today time.Time) time.Time {
	ahead := (7 - grid.DayOfWeek(today)) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

// nextWeekDates returns the Monday-to-Sunday span of the next week.
func nextWeekDates(today time.Time) []time.Time {
	start := nextMonday(today)
	dates := make([]time.Time, 7)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// nextMonthDates returns every day of the next calendar month.
func nextMonthDates(today time.Time) []time.Time {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	last := first.AddDate(0, 1, -1)

	var dates []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
