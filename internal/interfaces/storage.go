package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/ternarybob/marketdesk/internal/reg30"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// WatchlistStorage persists bookmarked symbols
type WatchlistStorage interface {
	SaveStock(ctx context.Context, stock *models.WatchlistStock) error
	GetStock(ctx context.Context, symbol string) (*models.WatchlistStock, error)
	ListStocks(ctx context.Context) ([]*models.WatchlistStock, error)
	DeleteStock(ctx context.Context, symbol string) error
}

// ReportFilter narrows ListReports. Empty fields match everything.
type ReportFilter struct {
	Symbol string
	Family reg30.Family
	Limit  int
}

// ReportStorage persists analysed disclosures, unique per fingerprint
type ReportStorage interface {
	// UpsertReport inserts or replaces the report keyed by its fingerprint.
	// Returns true when no report existed under that fingerprint.
	UpsertReport(ctx context.Context, report *reg30.Report) (bool, error)
	GetReport(ctx context.Context, fingerprint string) (*reg30.Report, error)
	// ListReports returns reports ordered by event date, newest first
	ListReports(ctx context.Context, filter ReportFilter) ([]*reg30.Report, error)
	CountReports(ctx context.Context) (int, error)
	DeleteAllReports(ctx context.Context) (int, error)
}

// CacheStorage memoises AI results keyed by content hash
type CacheStorage interface {
	// GetCached decodes the entry into dest. Returns false when absent.
	GetCached(ctx context.Context, namespace, key string, dest interface{}) (bool, error)
	PutCached(ctx context.Context, namespace, key string, value interface{}) error
	ClearCache(ctx context.Context, namespace string) (int, error)
}

// MarketLogStorage records periodic index snapshots
type MarketLogStorage interface {
	AppendMarketLog(ctx context.Context, entry *models.MarketLog) error
	ListMarketLogs(ctx context.Context, limit int) ([]*models.MarketLog, error)
}

// StorageManager groups all storage interfaces
type StorageManager interface {
	WatchlistStorage() WatchlistStorage
	ReportStorage() ReportStorage
	CacheStorage() CacheStorage
	KeyValueStorage() KeyValueStorage
	MarketLogStorage() MarketLogStorage
	RunGC() error
	Close() error
}
