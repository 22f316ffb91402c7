// Package telemetry probes the benchmark index and keeps a last-known value
// for when the session is closed or the broker is unreachable.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/metrics"
	"github.com/ternarybob/marketdesk/internal/models"
)

// ErrNoTelemetry is returned when neither the broker nor the log has a value
var ErrNoTelemetry = errors.New("no market telemetry available from broker or cache")

const tooFrequent = "Polling too frequently"

// Config tunes the probe
type Config struct {
	IndexSymbol string
	MinInterval time.Duration
	LogInterval time.Duration
	MaxFailures int
}

// Status is the index telemetry shown in the dashboard header
type Status struct {
	Symbol     string            `json:"symbol"`
	Quote      market.Quote      `json:"quote"`
	IsOpen     bool              `json:"is_open"`
	Session    string            `json:"session"`
	DataSource models.DataSource `json:"data_source"`
	ErrorKind  breeze.ErrorKind  `json:"error_kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Service probes the index quote with throttling and fallback
type Service struct {
	provider interfaces.MarketDataProvider
	logs     interfaces.MarketLogStorage
	events   interfaces.EventService
	clock    *market.SessionClock
	config   Config
	logger   arbor.ILogger

	mu       sync.Mutex
	last     *Status
	lastCall time.Time
	lastLog  time.Time
	failures int
}

// NewService creates the telemetry service. events may be nil.
func NewService(
	provider interfaces.MarketDataProvider,
	logs interfaces.MarketLogStorage,
	events interfaces.EventService,
	clock *market.SessionClock,
	config Config,
	logger arbor.ILogger,
) *Service {
	if config.IndexSymbol == "" {
		config.IndexSymbol = "NIFTY"
	}
	if config.MinInterval <= 0 {
		config.MinInterval = 2 * time.Second
	}
	if config.LogInterval <= 0 {
		config.LogInterval = 30 * time.Second
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	return &Service{
		provider: provider,
		logs:     logs,
		events:   events,
		clock:    clock,
		config:   config,
		logger:   logger,
	}
}

// Status returns the current index telemetry.
//
// While the session is closed the last-known value is served from memory or
// the market log. While open, calls closer together than MinInterval get the
// cached status back, and after MaxFailures consecutive broker failures the
// last-known value is served with the failure kind attached.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	open := s.clock.IsOpen()
	metrics.SetMarketOpen(open)

	if !open {
		status, err := s.lastKnown(ctx, now)
		if err != nil {
			return s.offline(now, err), nil
		}
		status.ErrorKind = breeze.ErrorKindNone
		return s.finish(ctx, status, open), nil
	}

	if !s.lastCall.IsZero() && now.Sub(s.lastCall) < s.config.MinInterval {
		if s.last == nil {
			return nil, errors.New(tooFrequent)
		}
		cached := *s.last
		cached.Error = tooFrequent
		return &cached, nil
	}
	s.lastCall = now

	row, err := s.provider.GetQuote(ctx, s.config.IndexSymbol)
	metrics.QuoteFetchesTotal.WithLabelValues("index", metrics.Result(err)).Inc()
	if err != nil {
		s.failures++
		s.logger.Warn().Err(err).Int("failures", s.failures).Msg("Index quote failed")
		if s.failures < s.config.MaxFailures {
			return nil, fmt.Errorf("index quote failed: %w", err)
		}
		status, lkErr := s.lastKnown(ctx, now)
		if lkErr != nil {
			return s.offline(now, err), nil
		}
		status.DataSource = models.DataSourceCache
		status.ErrorKind = breeze.ErrorKindNetwork
		status.Error = err.Error()
		return s.finish(ctx, status, open), nil
	}

	s.failures = 0
	status := &Status{
		Symbol:     s.config.IndexSymbol,
		Quote:      market.NormalizeQuote(row, s.config.IndexSymbol),
		DataSource: models.DataSourceBreeze,
		UpdatedAt:  now,
	}
	s.last = status

	if now.Sub(s.lastLog) > s.config.LogInterval {
		if err := s.appendLog(ctx, status); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write market log")
		} else {
			s.lastLog = now
		}
	}

	copied := *status
	return s.finish(ctx, &copied, open), nil
}

// lastKnown returns a copy of the newest value from memory, then the market
// log, then a one-time broker call.
func (s *Service) lastKnown(ctx context.Context, now time.Time) (*Status, error) {
	if s.last != nil {
		cached := *s.last
		cached.DataSource = models.DataSourceCache
		return &cached, nil
	}

	logs, err := s.logs.ListMarketLogs(ctx, 1)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read market log")
	}
	if len(logs) > 0 {
		entry := logs[0]
		status := &Status{
			Symbol: entry.Symbol,
			Quote: market.Quote{
				Symbol:          entry.Symbol,
				LastTradedPrice: entry.LastPrice,
				PercentChange:   entry.ChangePercent,
			},
			DataSource: models.DataSourceCache,
			UpdatedAt:  entry.RecordedAt,
		}
		s.last = status
		cached := *status
		return &cached, nil
	}

	s.logger.Warn().Msg("No cached market data found, doing one-time broker call")
	row, err := s.provider.GetQuote(ctx, s.config.IndexSymbol)
	metrics.QuoteFetchesTotal.WithLabelValues("index", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTelemetry, err)
	}

	status := &Status{
		Symbol:     s.config.IndexSymbol,
		Quote:      market.NormalizeQuote(row, s.config.IndexSymbol),
		DataSource: models.DataSourceCache,
		UpdatedAt:  now,
	}
	if err := s.appendLog(ctx, status); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write market log")
	}
	s.last = status
	cached := *status
	return &cached, nil
}

func (s *Service) appendLog(ctx context.Context, status *Status) error {
	return s.logs.AppendMarketLog(ctx, &models.MarketLog{
		Symbol:        status.Symbol,
		LastPrice:     status.Quote.LastTradedPrice,
		ChangePercent: status.Quote.PercentChange,
		Status:        s.clock.Status(),
		DataSource:    status.DataSource,
		RecordedAt:    status.UpdatedAt,
	})
}

func (s *Service) offline(now time.Time, err error) *Status {
	return &Status{
		Symbol:     s.config.IndexSymbol,
		IsOpen:     s.clock.IsOpen(),
		Session:    s.clock.Status(),
		DataSource: models.DataSourceOffline,
		ErrorKind:  breeze.ClassifyError(err),
		Error:      err.Error(),
		UpdatedAt:  now,
	}
}

func (s *Service) finish(ctx context.Context, status *Status, open bool) *Status {
	status.IsOpen = open
	status.Session = s.clock.Status()
	if s.events != nil {
		if err := s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventMarketStatus, Payload: *status}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish market status")
		}
	}
	return status
}
