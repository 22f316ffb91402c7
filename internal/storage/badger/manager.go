package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/interfaces"
)

const gcDiscardRatio = 0.5

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	watchlist interfaces.WatchlistStorage
	report    interfaces.ReportStorage
	cache     interfaces.CacheStorage
	kv        interfaces.KeyValueStorage
	marketLog interfaces.MarketLogStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:        db,
		watchlist: NewWatchlistStorage(db, logger),
		report:    NewReportStorage(db, logger),
		cache:     NewCacheStorage(db, logger),
		kv:        NewKVStorage(db, logger),
		marketLog: NewMarketLogStorage(db, logger),
		logger:    logger,
	}
}

func (m *Manager) WatchlistStorage() interfaces.WatchlistStorage {
	return m.watchlist
}

func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.report
}

func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) MarketLogStorage() interfaces.MarketLogStorage {
	return m.marketLog
}

// RunGC reclaims value log space left by report wipes and cache churn
func (m *Manager) RunGC() error {
	rewritten, err := m.db.RunValueLogGC(gcDiscardRatio)
	if err != nil {
		return err
	}
	if rewritten > 0 {
		m.logger.Info().Int("files", rewritten).Msg("Badger value log compacted")
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
