package grid

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/petfriends/servicedemand/internal/pricing"
)

// DateLayout is the day-granularity date format used in the grid file and
// all API responses.
const DateLayout = "2006-01-02"

// Header is the fixed column schema of the materialized grid file.
var Header = []string{
	"date", "category_id", "service_id", "service_name",
	"base_price", "discount_amount", "discount_from", "discount_to",
	"day_of_week", "is_weekend", "promotion_count", "discount_flag",
	"booking_count", "price",
}

// Store persists the feature grid as a flat CSV file. The file is
// rewritten wholesale on every refresh cycle; there is no incremental
// upsert.
type Store struct {
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a materialized grid file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Write replaces the grid file with the given grid. The write goes
// through a temp file and rename so a reader never observes a partially
// written grid.
func (s *Store) Write(g *Grid) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "grid-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp grid file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write grid header: %w", err)
	}
	for _, r := range g.Rows {
		record := []string{
			r.Date.Format(DateLayout),
			strconv.Itoa(r.CategoryID),
			strconv.Itoa(r.ServiceID),
			r.ServiceName,
			formatFloat(r.BasePrice),
			formatFloat(r.DiscountAmount),
			formatBound(r.DiscountFrom),
			formatBound(r.DiscountTo),
			strconv.Itoa(r.DayOfWeek),
			strconv.Itoa(r.IsWeekend),
			strconv.Itoa(r.PromotionCount),
			strconv.Itoa(r.DiscountFlag),
			formatFloat(r.BookingCount),
			formatFloat(r.Price),
		}
		if err := w.Write(record); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write grid row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush grid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp grid file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace grid file: %w", err)
	}
	return nil
}

// Read loads the full grid from disk.
func (s *Store) Read() (*Grid, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open grid file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read grid file: %w", err)
	}
	if len(records) == 0 {
		return &Grid{}, nil
	}

	g := &Grid{Rows: make([]Row, 0, len(records)-1)}
	for i, record := range records[1:] {
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("grid row %d: %w", i+2, err)
		}
		g.Rows = append(g.Rows, row)
	}
	return g, nil
}

// MaxDate returns the latest materialized date, or an error when the file
// is absent, unreadable, or empty.
func (s *Store) MaxDate() (time.Time, error) {
	g, err := s.Read()
	if err != nil {
		return time.Time{}, err
	}
	max := g.MaxDate()
	if max.IsZero() {
		return time.Time{}, fmt.Errorf("grid file %s contains no rows", s.path)
	}
	return max, nil
}

func parseRow(record []string) (Row, error) {
	if len(record) < len(Header) {
		return Row{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(record))
	}

	date, err := time.ParseInLocation(DateLayout, record[0], time.UTC)
	if err != nil {
		return Row{}, fmt.Errorf("invalid date %q: %w", record[0], err)
	}

	ints := make([]int, 0, 6)
	for _, idx := range []int{1, 2, 8, 9, 10, 11} {
		v, err := strconv.Atoi(record[idx])
		if err != nil {
			return Row{}, fmt.Errorf("invalid %s %q: %w", Header[idx], record[idx], err)
		}
		ints = append(ints, v)
	}

	floats := make([]float64, 0, 4)
	for _, idx := range []int{4, 5, 12, 13} {
		v, err := strconv.ParseFloat(record[idx], 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid %s %q: %w", Header[idx], record[idx], err)
		}
		floats = append(floats, v)
	}

	from, err := parseBound(record[6])
	if err != nil {
		return Row{}, fmt.Errorf("invalid discount_from %q: %w", record[6], err)
	}
	to, err := parseBound(record[7])
	if err != nil {
		return Row{}, fmt.Errorf("invalid discount_to %q: %w", record[7], err)
	}

	return Row{
		Date:           date,
		CategoryID:     ints[0],
		ServiceID:      ints[1],
		ServiceName:    record[3],
		BasePrice:      floats[0],
		DiscountAmount: floats[1],
		DiscountFrom:   from,
		DiscountTo:     to,
		DayOfWeek:      ints[2],
		IsWeekend:      ints[3],
		PromotionCount: ints[4],
		DiscountFlag:   ints[5],
		BookingCount:   floats[2],
		Price:          floats[3],
	}, nil
}

func parseBound(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ServicesFromGrid recovers the distinct service reference rows from a
// materialized grid, for forecast-mode row construction. Raw identifiers
// are gone at this point; the dense codes are the identity.
func ServicesFromGrid(g *Grid) []Service {
	seen := make(map[string]struct{})
	var services []Service
	for _, r := range g.Rows {
		key := fmt.Sprintf("%d|%s|%d|%v|%v|%s|%s",
			r.ServiceID, r.ServiceName, r.CategoryID,
			r.BasePrice, r.DiscountAmount,
			formatBound(r.DiscountFrom), formatBound(r.DiscountTo))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		services = append(services, Service{
			ServiceID:      r.ServiceID,
			CategoryID:     r.CategoryID,
			Name:           r.ServiceName,
			BasePrice:      r.BasePrice,
			DiscountAmount: r.DiscountAmount,
			Window:         pricing.DiscountWindow{From: r.DiscountFrom, To: r.DiscountTo},
		})
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].ServiceID != services[j].ServiceID {
			return services[i].ServiceID < services[j].ServiceID
		}
		return formatBound(services[i].Window.From) < formatBound(services[j].Window.From)
	})
	return services
}
