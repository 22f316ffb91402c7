// Package watchlist manages bookmarked symbols and keeps their quotes,
// depth and volume baselines fresh.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/breeze"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/market"
	"github.com/ternarybob/marketdesk/internal/metrics"
	"github.com/ternarybob/marketdesk/internal/models"
	"golang.org/x/time/rate"
)

var (
	// ErrRefreshInProgress is returned when a batch refresh is already running
	ErrRefreshInProgress = errors.New("watchlist refresh already in progress")

	// ErrMarketClosed is returned when an unforced refresh runs outside the session
	ErrMarketClosed = errors.New("market is closed")

	// ErrInvalidSymbol is returned for an empty symbol
	ErrInvalidSymbol = errors.New("symbol is required")
)

// Config holds the refresh tuning
type Config struct {
	Stagger     time.Duration
	HistoryDays int
	AvgWindow   int
}

// RefreshResult summarises one batch refresh
type RefreshResult struct {
	Refreshed int               `json:"refreshed"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// StockSnapshot is one watchlist row as shown on the dashboard
type StockSnapshot struct {
	Stock     *models.WatchlistStock   `json:"stock"`
	Quote     *market.Quote            `json:"quote,omitempty"`
	Metrics   *market.LiquidityMetrics `json:"metrics,omitempty"`
	Hint      string                   `json:"hint"`
	Error     string                   `json:"error,omitempty"`
	ErrorKind breeze.ErrorKind         `json:"error_kind,omitempty"`
	Source    string                   `json:"source,omitempty"`
	UpdatedAt time.Time                `json:"updated_at,omitempty"`
}

// Service manages the watchlist
type Service struct {
	storage  interfaces.WatchlistStorage
	provider interfaces.MarketDataProvider
	resolver interfaces.SymbolResolver
	events   interfaces.EventService
	clock    *market.SessionClock
	logger   arbor.ILogger

	book    *QuoteBook
	avgVol  *AvgVolumeCache
	limiter *rate.Limiter
	config  Config

	refreshing atomic.Bool
}

// NewService creates the watchlist service. events may be nil.
func NewService(
	storage interfaces.WatchlistStorage,
	provider interfaces.MarketDataProvider,
	resolver interfaces.SymbolResolver,
	events interfaces.EventService,
	clock *market.SessionClock,
	config Config,
	logger arbor.ILogger,
) *Service {
	if config.HistoryDays <= 0 {
		config.HistoryDays = 40
	}
	if config.AvgWindow <= 0 {
		config.AvgWindow = 20
	}

	limit := rate.Inf
	if config.Stagger > 0 {
		limit = rate.Every(config.Stagger)
	}

	return &Service{
		storage:  storage,
		provider: provider,
		resolver: resolver,
		events:   events,
		clock:    clock,
		logger:   logger,
		book:     NewQuoteBook(),
		avgVol:   NewAvgVolumeCache(),
		limiter:  rate.NewLimiter(limit, 1),
		config:   config,
	}
}

// Book exposes the shared quote book
func (s *Service) Book() *QuoteBook {
	return s.book
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add bookmarks symbol. Re-adding keeps the original AddedAt.
func (s *Service) Add(ctx context.Context, symbol, companyName string) (*models.WatchlistStock, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	stock, err := s.storage.GetStock(ctx, symbol)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	}
	if stock == nil {
		stock = &models.WatchlistStock{Symbol: symbol, AddedAt: s.clock.Now()}
	}
	if name := strings.TrimSpace(companyName); name != "" {
		stock.CompanyName = name
	}
	if stock.CompanyName == "" {
		stock.CompanyName = symbol
	}

	if err := s.storage.SaveStock(ctx, stock); err != nil {
		return nil, err
	}

	s.logger.Info().Str("symbol", symbol).Msg("Symbol added to watchlist")
	return stock, nil
}

// Remove deletes the bookmark and its cached market state
func (s *Service) Remove(ctx context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return ErrInvalidSymbol
	}
	if err := s.storage.DeleteStock(ctx, symbol); err != nil {
		return err
	}
	s.book.Remove(symbol)
	s.logger.Info().Str("symbol", symbol).Msg("Symbol removed from watchlist")
	return nil
}

// List returns the bookmarks in the order they were added
func (s *Service) List(ctx context.Context) ([]*models.WatchlistStock, error) {
	return s.storage.ListStocks(ctx)
}

// Symbols returns the bookmarked symbols
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	stocks, err := s.storage.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(stocks))
	for i, stock := range stocks {
		symbols[i] = stock.Symbol
	}
	return symbols, nil
}

// RefreshAll polls quote and depth for every bookmark, one symbol at a
// time. It does nothing while the market is closed unless force is set,
// and never runs twice concurrently.
func (s *Service) RefreshAll(ctx context.Context, force bool) (*RefreshResult, error) {
	if !force && !s.clock.IsOpen() {
		return nil, ErrMarketClosed
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	start := time.Now()
	stocks, err := s.storage.ListStocks(ctx)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Errors: map[string]string{}}
	for _, stock := range stocks {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}
		if err := s.refreshOne(ctx, stock); err != nil {
			result.Failed++
			result.Errors[stock.Symbol] = err.Error()
			continue
		}
		result.Refreshed++
	}

	result.Duration = time.Since(start)
	metrics.WatchlistRefreshSeconds.Observe(result.Duration.Seconds())

	s.logger.Debug().
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Watchlist refresh completed")

	s.publish(ctx, interfaces.EventWatchlistRefreshed, result)
	return result, nil
}

// refreshOne fetches quote then depth. A depth failure is logged but only a
// quote failure fails the symbol.
func (s *Service) refreshOne(ctx context.Context, stock *models.WatchlistStock) error {
	code := s.resolver.Resolve(ctx, stock.Symbol)
	now := s.clock.Now()

	row, quoteErr := s.provider.GetQuote(ctx, code)
	metrics.QuoteFetchesTotal.WithLabelValues("quote", metrics.Result(quoteErr)).Inc()
	if quoteErr == nil {
		q := market.NormalizeQuote(row, stock.Symbol)
		s.book.SetQuote(stock.Symbol, q, SourcePoll, now)
		s.publish(ctx, interfaces.EventQuoteUpdate, QuoteUpdate{Symbol: stock.Symbol, Quote: q, Source: SourcePoll})
	} else {
		s.book.SetError(stock.Symbol, quoteErr.Error())
	}

	depthRow, depthErr := s.provider.GetDepth(ctx, code)
	metrics.QuoteFetchesTotal.WithLabelValues("depth", metrics.Result(depthErr)).Inc()
	if depthErr == nil {
		s.book.SetDepth(stock.Symbol, market.NormalizeDepth(depthRow), now)
	} else {
		s.logger.Warn().Err(depthErr).Str("symbol", stock.Symbol).Msg("Depth fetch failed")
	}

	s.averageVolume(ctx, stock.Symbol, code)

	if quoteErr != nil {
		stock.LastError = quoteErr.Error()
		if err := s.storage.SaveStock(ctx, stock); err != nil {
			s.logger.Warn().Err(err).Str("symbol", stock.Symbol).Msg("Failed to record watchlist error")
		}
		return quoteErr
	}

	entry, _ := s.book.Get(stock.Symbol)
	stock.CurrentPrice = entry.Quote.LastTradedPrice
	stock.PercentageChange = entry.Quote.PercentChange
	stock.LastUpdate = now
	stock.LastError = ""
	if err := s.storage.SaveStock(ctx, stock); err != nil {
		return fmt.Errorf("failed to save %s: %w", stock.Symbol, err)
	}
	return nil
}

// averageVolume returns the baseline volume for symbol, fetching history at
// most once per trading day. An empty history is cached for the day; fetch
// errors are not.
func (s *Service) averageVolume(ctx context.Context, symbol, code string) *float64 {
	now := s.clock.Now()
	day := now.Format("2006-01-02")
	if v, ok := s.avgVol.Get(symbol, day); ok {
		return v
	}

	bars, err := s.provider.GetHistorical(ctx, code, now.AddDate(0, 0, -s.config.HistoryDays), now)
	metrics.QuoteFetchesTotal.WithLabelValues("historical", metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Historical fetch failed")
		return s.avgVol.Peek(symbol)
	}

	avg := market.AverageVolume(bars, s.config.AvgWindow)
	if avg == nil {
		s.avgVol.PutMiss(symbol, day)
		return nil
	}
	s.avgVol.Put(symbol, day, *avg)
	return avg
}

// QuoteUpdate is the payload of EventQuoteUpdate
type QuoteUpdate struct {
	Symbol string       `json:"symbol"`
	Quote  market.Quote `json:"quote"`
	Source string       `json:"source"`
}

// ApplyPush writes a pushed row into the book. Rows without a symbol are
// dropped.
func (s *Service) ApplyPush(ctx context.Context, row market.Row) (string, bool) {
	symbol := normalizeSymbol(row.String("symbol"))
	if symbol == "" {
		return "", false
	}

	q := market.NormalizeQuote(row, symbol)
	s.book.SetQuote(symbol, q, SourcePush, s.clock.Now())
	if row.Has("best_bid_price") || row.Has("best_offer_price") {
		s.book.SetDepth(symbol, market.NormalizeDepth(row), s.clock.Now())
	}

	s.publish(ctx, interfaces.EventQuoteUpdate, QuoteUpdate{Symbol: symbol, Quote: q, Source: SourcePush})
	return symbol, true
}

// Snapshot joins each bookmark with its latest quote, metrics and hint
func (s *Service) Snapshot(ctx context.Context) ([]StockSnapshot, error) {
	stocks, err := s.storage.ListStocks(ctx)
	if err != nil {
		return nil, err
	}

	open := s.clock.IsOpen()
	snapshots := make([]StockSnapshot, 0, len(stocks))
	for _, stock := range stocks {
		snap := StockSnapshot{Stock: stock, Error: stock.LastError}

		if entry, ok := s.book.Get(stock.Symbol); ok {
			snap.Source = entry.Source
			snap.UpdatedAt = entry.UpdatedAt
			if entry.Error != "" {
				snap.Error = entry.Error
			}
			if entry.Quote != nil {
				q := *entry.Quote
				m := market.CalculateLiquidity(q, entry.Depth, s.avgVol.Peek(stock.Symbol))
				snap.Quote = &q
				snap.Metrics = &m
			}
		}
		if snap.Error != "" {
			snap.ErrorKind = breeze.ClassifyError(errors.New(snap.Error))
		}
		snap.Hint = market.RecommendationHint(open, snap.Metrics)
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
