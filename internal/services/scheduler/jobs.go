package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/services/telemetry"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
)

const (
	WatchlistJobName = "watchlist_refresh"
	TelemetryJobName = "market_telemetry"
	StorageGCJobName = "storage_gc"
)

// WatchlistRefresher is the part of the watchlist service the job drives
type WatchlistRefresher interface {
	RefreshAll(ctx context.Context, force bool) (*watchlist.RefreshResult, error)
}

// StatusProber is the part of the telemetry service the job drives
type StatusProber interface {
	Status(ctx context.Context) (*telemetry.Status, error)
}

// GarbageCollector compacts persistent storage
type GarbageCollector interface {
	RunGC() error
}

// WatchlistJob refreshes the watchlist on every tick while the market is
// open. While closed it forces a refresh at most once per closedInterval.
func WatchlistJob(refresher WatchlistRefresher, clock *market.SessionClock, closedInterval time.Duration) JobHandler {
	var mu sync.Mutex
	var last time.Time

	return func(ctx context.Context) error {
		mu.Lock()
		now := clock.Now()
		open := clock.IsOpen()
		if !open && !last.IsZero() && now.Sub(last) < closedInterval {
			mu.Unlock()
			return nil
		}
		last = now
		mu.Unlock()

		_, err := refresher.RefreshAll(ctx, !open)
		if errors.Is(err, watchlist.ErrRefreshInProgress) {
			return nil
		}
		return err
	}
}

// TelemetryJob probes the index status so subscribers receive it
func TelemetryJob(prober StatusProber) JobHandler {
	return func(ctx context.Context) error {
		_, err := prober.Status(ctx)
		return err
	}
}

// StorageGCJob compacts storage on each tick
func StorageGCJob(gc GarbageCollector) JobHandler {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return gc.RunGC()
	}
}
