package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// KVStorage implements the KeyValueStorage interface for Badger
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeKey converts a key to lowercase for case-insensitive storage
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves a value by key (case-insensitive)
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

// GetPair retrieves a full KeyValuePair by key (case-insensitive)
func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	err := s.db.Store().Get(normalizeKey(key), &pair)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key/value pair: %w", err)
	}
	return &pair, nil
}

// Set inserts or updates a key/value pair, preserving CreatedAt
func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	return s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		return s.upsertTx(tx, key, value, description, time.Now())
	})
}

// SetMany writes all pairs in one transaction. Used for the symbol master
// list import.
func (s *KVStorage) SetMany(ctx context.Context, pairs map[string]string, description string) error {
	now := time.Now()
	err := s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		for key, value := range pairs {
			if err := s.upsertTx(tx, key, value, description, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %d key/value pairs: %w", len(pairs), err)
	}
	s.logger.Debug().Int("count", len(pairs)).Msg("Stored key/value pairs")
	return nil
}

func (s *KVStorage) upsertTx(tx *badger.Txn, key, value, description string, now time.Time) error {
	normalizedKey := normalizeKey(key)
	pair := interfaces.KeyValuePair{
		Key:         normalizedKey,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var existing interfaces.KeyValuePair
	if err := s.db.Store().TxGet(tx, normalizedKey, &existing); err == nil {
		pair.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to check key %s: %w", normalizedKey, err)
	}

	if err := s.db.Store().TxUpsert(tx, normalizedKey, &pair); err != nil {
		return fmt.Errorf("failed to set key %s: %w", normalizedKey, err)
	}
	return nil
}

// Delete removes a key/value pair (case-insensitive)
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(normalizeKey(key), &interfaces.KeyValuePair{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// ListByPrefix returns the pairs whose key starts with prefix, sorted by key
func (s *KVStorage) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	query := badgerhold.Where("Key").HasPrefix(normalizeKey(prefix)).SortBy("Key")
	if err := s.db.Store().Find(&pairs, query); err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %s: %w", prefix, err)
	}
	return pairs, nil
}
