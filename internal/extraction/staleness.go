package extraction

import (
	"context"
	"time"

	"github.com/petfriends/servicedemand/internal/grid"
	"github.com/petfriends/servicedemand/internal/logging"
)

// Stale is the pure staleness decision. Refresh is needed when local data
// could not be read, or when its max date lags the upstream max date. A
// failing remote probe also forces a refresh (fail-open), since extraction
// is the only way to find out what upstream actually holds. Remote dates
// older than local are treated as up to date; clock rollback upstream is
// deliberately not chased.
func Stale(remoteMax time.Time, remoteErr error, localMax time.Time, localErr error) bool {
	if localErr != nil {
		return true
	}
	if remoteErr != nil {
		return true
	}
	return localMax.Before(remoteMax)
}

// Detector compares the upstream fact store against the local grid file.
type Detector struct {
	logger *logging.Logger
	source Source
	store  *grid.Store
}

// NewDetector creates a staleness detector.
func NewDetector(logger *logging.Logger, source Source, store *grid.Store) *Detector {
	return &Detector{logger: logger, source: source, store: store}
}

// NeedsRefresh reports whether extraction must re-run.
func (d *Detector) NeedsRefresh(ctx context.Context) bool {
	localMax, localErr := d.store.MaxDate()
	if localErr != nil {
		d.logger.Info("Local grid absent or unreadable, refresh required",
			"path", d.store.Path(), "error", localErr)
		return true
	}

	remoteMax, remoteErr := d.source.MaxFactDate(ctx)
	if remoteErr != nil {
		d.logger.Warn("Staleness probe failed, refreshing to be safe", "error", remoteErr)
		return true
	}

	stale := Stale(remoteMax, nil, localMax, nil)
	d.logger.Debug("Staleness check",
		"local_max", localMax.Format(grid.DateLayout),
		"remote_max", remoteMax.Format(grid.DateLayout),
		"stale", stale)
	return stale
}
