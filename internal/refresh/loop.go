// Package refresh runs the periodic extract and retrain cycle in the
// background.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/petfriends/servicedemand/internal/logging"
	"github.com/petfriends/servicedemand/internal/services"
)

// Loop triggers the refresh service on a fixed interval. Cycle errors
// are logged and swallowed; the next tick tries again. A tick that
// lands while a manual refresh is still running is skipped.
type Loop struct {
	logger   *logging.Logger
	service  *services.RefreshService
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLoop creates a background refresh loop.
func NewLoop(logger *logging.Logger, service *services.RefreshService, interval time.Duration) *Loop {
	return &Loop{
		logger:   logger,
		service:  service,
		interval: interval,
	}
}

// Start begins the periodic cycle. Calling Start on a running loop is a
// no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})

	l.wg.Add(1)
	go l.run(ctx)

	l.logger.Info("Background refresh loop started", "interval", l.interval.String())
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("Background refresh loop stopped")
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.tick(ctx)
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	err := l.service.Run(ctx)
	switch {
	case err == nil:
	case err == services.ErrRefreshInProgress:
		l.logger.Debug("Skipping scheduled refresh, cycle already running")
	default:
		l.logger.Error("Scheduled refresh failed", "error", err)
	}
}
