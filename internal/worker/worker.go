package worker

import (
	"context"
	"time"

	"pos-analytics/internal/util"

	"go.uber.org/zap"
)

// MenuRefresher keeps the cached menu lookup warm so queries rarely pay
// for a menus fetch.
type MenuRefresher struct {
	refresh  func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
}

// NewMenuRefresher creates a refresher calling refresh every interval.
func NewMenuRefresher(refresh func(ctx context.Context) error, interval time.Duration) *MenuRefresher {
	return &MenuRefresher{
		refresh:  refresh,
		interval: interval,
		logger:   util.GetLogger(),
		stop:     make(chan struct{}),
	}
}

// Start runs the refresh loop until the context is cancelled or Stop is
// called. The first refresh happens immediately.
func (w *MenuRefresher) Start(ctx context.Context) error {
	w.logger.Info("Starting menu refresher", zap.Duration("interval", w.interval))

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the refresher.
func (w *MenuRefresher) Stop() {
	close(w.stop)
}

func (w *MenuRefresher) runOnce(ctx context.Context) {
	if err := w.refresh(ctx); err != nil {
		// Queries fall back to fetching menus themselves; a failed warmup
		// is not fatal.
		w.logger.Warn("Menu refresh failed", zap.Error(err))
	}
}
