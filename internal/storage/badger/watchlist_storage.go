package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// WatchlistStorage implements interfaces.WatchlistStorage for Badger
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{
		db:     db,
		logger: logger,
	}
}

func watchlistKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SaveStock inserts or replaces a bookmark keyed by its symbol
func (s *WatchlistStorage) SaveStock(ctx context.Context, stock *models.WatchlistStock) error {
	stock.Symbol = watchlistKey(stock.Symbol)
	if stock.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if err := s.db.Store().Upsert(stock.Symbol, stock); err != nil {
		return fmt.Errorf("failed to save watchlist stock %s: %w", stock.Symbol, err)
	}
	return nil
}

func (s *WatchlistStorage) GetStock(ctx context.Context, symbol string) (*models.WatchlistStock, error) {
	var stock models.WatchlistStock
	err := s.db.Store().Get(watchlistKey(symbol), &stock)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist stock %s: %w", symbol, err)
	}
	return &stock, nil
}

// ListStocks returns bookmarks in the order they were added
func (s *WatchlistStorage) ListStocks(ctx context.Context) ([]*models.WatchlistStock, error) {
	var stocks []models.WatchlistStock
	if err := s.db.Store().Find(&stocks, badgerhold.Where("Symbol").Ne("").SortBy("AddedAt", "Symbol")); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}

	result := make([]*models.WatchlistStock, len(stocks))
	for i := range stocks {
		result[i] = &stocks[i]
	}
	return result, nil
}

func (s *WatchlistStorage) DeleteStock(ctx context.Context, symbol string) error {
	err := s.db.Store().Delete(watchlistKey(symbol), &models.WatchlistStock{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete watchlist stock %s: %w", symbol, err)
	}
	return nil
}
