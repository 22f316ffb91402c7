package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/ternarybob/marketdesk/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MarketLogStorage implements interfaces.MarketLogStorage for Badger
type MarketLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMarketLogStorage creates a new MarketLogStorage instance
func NewMarketLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MarketLogStorage {
	return &MarketLogStorage{
		db:     db,
		logger: logger,
	}
}

// AppendMarketLog inserts entry under the next sequence number
func (s *MarketLogStorage) AppendMarketLog(ctx context.Context, entry *models.MarketLog) error {
	if err := s.db.Store().Insert(badgerhold.NextSequence(), entry); err != nil {
		return fmt.Errorf("failed to append market log: %w", err)
	}
	return nil
}

// ListMarketLogs returns the most recent entries first
func (s *MarketLogStorage) ListMarketLogs(ctx context.Context, limit int) ([]*models.MarketLog, error) {
	query := badgerhold.Where("Symbol").Ne("").SortBy("RecordedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var logs []models.MarketLog
	if err := s.db.Store().Find(&logs, query); err != nil {
		return nil, fmt.Errorf("failed to list market logs: %w", err)
	}

	result := make([]*models.MarketLog, len(logs))
	for i := range logs {
		result[i] = &logs[i]
	}
	return result, nil
}
