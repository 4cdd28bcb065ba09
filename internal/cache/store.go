// Package cache implements the durable per-user profile cache. Entries are
// keyed by user identifier and carry the write timestamp; rewriting a key is
// last-writer-wins with no merge.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/profile-sync/internal/config"
	"github.com/profile-sync/internal/domain"
)

const keyPrefix = "profile:"

// Store is a Badger-backed cache of profile snapshots, scoped to the local
// device. It is self-healing: entries that fail to parse are deleted and
// reported absent, and no storage error ever propagates to callers of Read.
type Store struct {
	db          *badger.DB
	expireAfter time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewStore opens (or creates) the cache at the configured directory.
func NewStore(cfg *config.CacheConfig, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening profile cache: %w", err)
	}

	return &Store{
		db:          db,
		expireAfter: cfg.ExpireAfter,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func cacheKey(userID string) []byte {
	return []byte(keyPrefix + userID)
}

// Read returns the cache entry for a user, or false when no usable entry
// exists. A malformed stored entry is proactively deleted.
func (s *Store) Read(userID string) (*domain.CacheEntry, bool) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(userID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Profile == nil || entry.Profile.ID == "" {
		s.logger.Warn("discarding malformed cache entry", "user_id", userID)
		if err := s.Invalidate(userID); err != nil {
			s.logger.Warn("failed to delete malformed cache entry", "user_id", userID, "error", err)
		}
		return nil, false
	}
	return &entry, true
}

// Write stores a profile snapshot stamped with the current time, overwriting
// any prior entry for the same user.
func (s *Store) Write(userID string, profile *domain.Profile) error {
	entry := domain.CacheEntry{
		Profile:   profile,
		WrittenAt: s.now(),
	}
	raw, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(userID), raw)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a user's entry. Removing a missing entry is not an
// error.
func (s *Store) Invalidate(userID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(cacheKey(userID))
	})
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// SweepExpired deletes every entry older than the expiry horizon and returns
// how many were removed. Entries that fail to parse are removed as well.
func (s *Store) SweepExpired() (int, error) {
	cutoff := s.now().Add(-s.expireAfter)

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry domain.CacheEntry
			if err := json.Unmarshal(raw, &entry); err != nil || entry.WrittenAt.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning cache entries: %w", err)
	}

	for _, key := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return 0, fmt.Errorf("sweeping cache entry: %w", err)
		}
	}
	return len(stale), nil
}
