package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// CacheEntry is one memoised AI result. Payload holds the JSON encoding of
// the cached value.
type CacheEntry struct {
	Key       string `badgerhold:"key"`
	Namespace string `badgerhold:"index"`
	Payload   []byte
	CreatedAt time.Time
}

// CacheStorage implements interfaces.CacheStorage for Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

func cacheKey(namespace, key string) string {
	return namespace + ":" + key
}

func (s *CacheStorage) GetCached(ctx context.Context, namespace, key string, dest interface{}) (bool, error) {
	var entry CacheEntry
	err := s.db.Store().Get(cacheKey(namespace, key), &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache %s: %w", namespace, err)
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", entry.Key, err)
	}
	return true, nil
}

func (s *CacheStorage) PutCached(ctx context.Context, namespace, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	entry := CacheEntry{
		Key:       cacheKey(namespace, key),
		Namespace: namespace,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := s.db.Store().Upsert(entry.Key, &entry); err != nil {
		return fmt.Errorf("failed to write cache %s: %w", namespace, err)
	}
	return nil
}

// ClearCache drops every entry in namespace
func (s *CacheStorage) ClearCache(ctx context.Context, namespace string) (int, error) {
	query := badgerhold.Where("Namespace").Eq(namespace).Index("Namespace")
	count, err := s.db.Store().Count(&CacheEntry{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache %s: %w", namespace, err)
	}
	if err := s.db.Store().DeleteMatching(&CacheEntry{}, query); err != nil {
		return 0, fmt.Errorf("failed to clear cache %s: %w", namespace, err)
	}
	return int(count), nil
}
