// Package extraction pulls booking facts out of the clinic database and
// decides when the locally materialized grid is stale.
package extraction

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/pricing"
)

// Source is the queryable booking-fact store.
type Source interface {
	// FetchFacts returns all booking facts grouped at
	// (date, service, price-window) granularity.
	FetchFacts(ctx context.Context) ([]grid.BookingFact, error)
	// MaxFactDate returns the latest fact date known upstream.
	MaxFactDate(ctx context.Context) (time.Time, error)
}

// factQuery aggregates appointments per (date, service, price-window) and
// joins promotions overlapping the service date. Day-of-week uses MySQL's
// WEEKDAY(), which is already Monday=0.
const factQuery = `
SELECT
    DATE(acs.date_given) AS date,
    cs.category AS category_id,
    cs.id AS service_id,
    cs.name AS service_name,
    cs.price AS base_price,
    COALESCE(cs.discount_amount, 0) AS discount_amount,
    DATE(cs.discount_from) AS discount_from,
    DATE(cs.discount_to) AS discount_to,
    WEEKDAY(acs.date_given) AS day_of_week,
    CASE WHEN WEEKDAY(acs.date_given) IN (5, 6) THEN 1 ELSE 0 END AS is_weekend,
    COUNT(DISTINCT p.id) AS promotion_count,
    CASE
        WHEN cs.discount_from IS NULL OR cs.discount_to IS NULL THEN 0
        WHEN acs.date_given >= cs.discount_from AND acs.date_given <= cs.discount_to THEN 1
        ELSE 0
    END AS discount_flag,
    COUNT(DISTINCT acs.id) AS booking_count
FROM appointment_clinic_service acs
JOIN clinic_service cs ON acs.clinic_service_id = cs.id
LEFT JOIN promotion p ON p.start_date <= acs.date_given AND p.end_date >= acs.date_given
GROUP BY
    DATE(acs.date_given),
    cs.id, cs.category, cs.name, cs.price,
    cs.discount_amount, cs.discount_from, cs.discount_to,
    WEEKDAY(acs.date_given),
    CASE WHEN WEEKDAY(acs.date_given) IN (5, 6) THEN 1 ELSE 0 END,
    CASE
        WHEN cs.discount_from IS NULL OR cs.discount_to IS NULL THEN 0
        WHEN acs.date_given >= cs.discount_from AND acs.date_given <= cs.discount_to THEN 1
        ELSE 0
    END
ORDER BY DATE(acs.date_given)`

const maxDateQuery = `SELECT DATE(MAX(date_given)) FROM appointment_clinic_service`

// SQLSource extracts booking facts from the clinic MySQL database.
type SQLSource struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the clinic database. DSNs in mysql:// URL form are
// converted to the driver's native format.
func Open(dsn string, timeout time.Duration) (*SQLSource, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &SQLSource{db: db, timeout: timeout}, nil
}

// NewSQLSource wraps an existing database handle.
func NewSQLSource(db *sql.DB, timeout time.Duration) *SQLSource {
	return &SQLSource{db: db, timeout: timeout}
}

func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mysql://") && !strings.HasPrefix(dsn, "mariadb://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse dsn: %w", err)
	}
	user := ""
	pass := ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	host := u.Host
	db := strings.TrimPrefix(u.Path, "/")
	if user == "" || host == "" || db == "" {
		return "", fmt.Errorf("incomplete dsn: user, host and database are required")
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC", user, pass, host, db), nil
}

// Close releases the database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// FetchFacts runs the grouped booking-fact query.
func (s *SQLSource) FetchFacts(ctx context.Context) ([]grid.BookingFact, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, factQuery)
	if err != nil {
		return nil, fmt.Errorf("fact query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []grid.BookingFact
	for rows.Next() {
		var (
			date           time.Time
			categoryID     string
			serviceID      string
			serviceName    string
			basePrice      float64
			discountAmount float64
			discountFrom   sql.NullTime
			discountTo     sql.NullTime
			dayOfWeek      int
			isWeekend      int
			promotionCount int
			discountFlag   int
			bookingCount   int
		)
		if err := rows.Scan(&date, &categoryID, &serviceID, &serviceName,
			&basePrice, &discountAmount, &discountFrom, &discountTo,
			&dayOfWeek, &isWeekend, &promotionCount, &discountFlag, &bookingCount); err != nil {
			return nil, fmt.Errorf("failed to scan fact row: %w", err)
		}

		window := pricing.DiscountWindow{}
		if discountFrom.Valid {
			from := pricing.Day(discountFrom.Time)
			window.From = &from
		}
		if discountTo.Valid {
			to := pricing.Day(discountTo.Time)
			window.To = &to
		}

		price := basePrice
		if discountFlag == 1 {
			price = basePrice - discountAmount
		}

		facts = append(facts, grid.BookingFact{
			Date:           pricing.Day(date),
			RawServiceID:   serviceID,
			ServiceName:    serviceName,
			RawCategoryID:  categoryID,
			BasePrice:      basePrice,
			DiscountAmount: discountAmount,
			Window:         window,
			DayOfWeek:      dayOfWeek,
			IsWeekend:      isWeekend,
			PromotionCount: promotionCount,
			DiscountFlag:   discountFlag,
			Price:          price,
			BookingCount:   bookingCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fact row iteration failed: %w", err)
	}
	return facts, nil
}

// MaxFactDate runs the scalar staleness probe.
func (s *SQLSource) MaxFactDate(ctx context.Context) (time.Time, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var max sql.NullTime
	if err := s.db.QueryRowContext(ctx, maxDateQuery).Scan(&max); err != nil {
		return time.Time{}, fmt.Errorf("max-date probe failed: %w", err)
	}
	if !max.Valid {
		return time.Time{}, fmt.Errorf("no facts present upstream")
	}
	return pricing.Day(max.Time), nil
}
