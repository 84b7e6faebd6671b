// Package badger implements a dedup store backed by BadgerDB.
package badger

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Config holds the BadgerDB backend parameters.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path"`
	// InMemory runs the database without disk persistence (tests).
	InMemory bool `mapstructure:"in_memory"`
	// SyncWrites forces every insert to disk before acknowledging.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Store implements pipeline.DedupStore over a BadgerDB keyspace.
// Membership checks hit the in-memory index; the database is the
// durable replay source.
type Store struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	db     *badger.DB
	logger *zap.Logger
	closed bool
}

// Open opens the database and iterates every key into the in-memory
// index. Open failures wrap pipeline.ErrStorageUnavailable.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %s: %v", pipeline.ErrStorageUnavailable, cfg.Path, err)
	}

	keys := make(map[string]struct{})
	err = db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys[string(it.Item().KeyCopy(nil))] = struct{}{}
		}
		return nil
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("close badger after load failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("%w: load badger index: %v", pipeline.ErrStorageUnavailable, err)
	}

	logger.Info("dedup store loaded",
		zap.String("backend", "badger"),
		zap.Int("keys", len(keys)),
	)
	return &Store{keys: keys, db: db, logger: logger}, nil
}

// Seen reports whether key is present in the index.
func (s *Store) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// AddIfNew checks and inserts under one lock; the key is persisted
// before true is returned.
func (s *Store) AddIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.keys[key]; ok {
		return false
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), nil)
	})
	if err != nil {
		s.logger.Error("persist dedup key", zap.String("key", key), zap.Error(err))
		return false
	}

	s.keys[key] = struct{}{}
	return true
}

// Count returns the number of keys in the index.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Close releases the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
