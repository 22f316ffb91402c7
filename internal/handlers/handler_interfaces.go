package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/ternarybob/marketdesk/internal/reg30"
	"github.com/ternarybob/marketdesk/internal/services/analysis"
	"github.com/ternarybob/marketdesk/internal/services/scheduler"
	"github.com/ternarybob/marketdesk/internal/services/session"
	"github.com/ternarybob/marketdesk/internal/services/telemetry"
	"github.com/ternarybob/marketdesk/internal/services/watchlist"
)

// Clock is the session clock used for open/closed answers
type Clock interface {
	Now() time.Time
	IsOpen() bool
	Status() string
}

// StatusProvider returns the index telemetry status
type StatusProvider interface {
	Status(ctx context.Context) (*telemetry.Status, error)
}

// WatchlistService manages bookmarks and their quotes
type WatchlistService interface {
	Add(ctx context.Context, symbol, companyName string) (*models.WatchlistStock, error)
	Remove(ctx context.Context, symbol string) error
	List(ctx context.Context) ([]*models.WatchlistStock, error)
	RefreshAll(ctx context.Context, force bool) (*watchlist.RefreshResult, error)
	Snapshot(ctx context.Context) ([]watchlist.StockSnapshot, error)
}

// AnalysisService runs and stores disclosure analyses
type AnalysisService interface {
	Start(candidates []reg30.EventCandidate) (string, error)
	Run(runID string) (*analysis.RunSummary, bool)
	ReAnalyze(ctx context.Context, fingerprint string) (*reg30.Report, error)
	ListReports(ctx context.Context, filter interfaces.ReportFilter) ([]*reg30.Report, error)
	GetReport(ctx context.Context, fingerprint string) (*reg30.Report, error)
	Wipe(ctx context.Context) (int, error)
}

// ReportRenderer renders a report as a PDF document
type ReportRenderer interface {
	ReportPDF(report *reg30.Report) ([]byte, error)
}

// SessionService activates the broker's daily session
type SessionService interface {
	Activate(ctx context.Context, token string) error
	Info(ctx context.Context) (*session.Info, error)
}

// HealthChecker reports broker proxy health
type HealthChecker interface {
	Health(ctx context.Context) (*breeze.HealthStatus, error)
}

// MasterListImporter loads the exchange symbol master list
type MasterListImporter interface {
	ImportMasterList(ctx context.Context, csvText string) (int, error)
}

// JobScheduler exposes scheduled job state
type JobScheduler interface {
	GetAllJobStatuses() map[string]*scheduler.JobStatus
	TriggerJob(name string) error
}
