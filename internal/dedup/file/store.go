// Package file implements the default dedup store: a JSONL append log
// replayed into an in-memory index at open.
package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// entry is one persisted log line.
type entry struct {
	Key     string    `json:"key"`
	AddedAt time.Time `json:"added_at"`
}

// Store implements pipeline.DedupStore over an append-only JSONL file.
// Every accepted key is flushed to disk before AddIfNew returns, so a
// crash never forgets an acknowledged insert.
type Store struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	file   *os.File
	logger *zap.Logger
	closed bool
}

// Open loads the backing log at path, replaying every entry into the
// in-memory index. Individual corrupt lines are logged and skipped; a
// non-empty log in which no line parses is treated as corrupt storage,
// since the store must not silently start empty when prior data
// existed. Open failures wrap pipeline.ErrStorageUnavailable.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create dedup dir: %v", pipeline.ErrStorageUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open dedup log %s: %v", pipeline.ErrStorageUnavailable, path, err)
	}

	keys := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var total, corrupt int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		total++
		var e entry
		if err := json.Unmarshal(line, &e); err != nil || e.Key == "" {
			corrupt++
			logger.Warn("skipping corrupt dedup log line",
				zap.String("path", path),
				zap.Int("line", total),
			)
			continue
		}
		keys[e.Key] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		closeQuietly(f, logger)
		return nil, fmt.Errorf("%w: read dedup log %s: %v", pipeline.ErrStorageUnavailable, path, err)
	}
	if total > 0 && corrupt == total {
		closeQuietly(f, logger)
		return nil, fmt.Errorf("%w: dedup log %s exists but no line parses", pipeline.ErrStorageUnavailable, path)
	}

	logger.Info("dedup store loaded",
		zap.String("path", path),
		zap.Int("keys", len(keys)),
		zap.Int("corrupt_lines", corrupt),
	)
	return &Store{keys: keys, file: f, logger: logger}, nil
}

// Seen reports whether key is present in the index.
func (s *Store) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// AddIfNew checks and inserts under one lock. The key line is appended
// and synced before true is returned; an append failure keeps the key
// out of the index so a later retry can succeed.
func (s *Store) AddIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.keys[key]; ok {
		return false
	}

	line, err := json.Marshal(entry{Key: key, AddedAt: time.Now().UTC()})
	if err != nil {
		s.logger.Error("marshal dedup entry", zap.Error(err))
		return false
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		s.logger.Error("append dedup entry", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := s.file.Sync(); err != nil {
		s.logger.Warn("sync dedup log", zap.Error(err))
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

// Close syncs and releases the backing file. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Sync(); err != nil {
		s.logger.Warn("sync dedup log on close", zap.Error(err))
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close dedup log: %w", err)
	}
	return nil
}

func closeQuietly(f *os.File, logger *zap.Logger) {
	if err := f.Close(); err != nil {
		logger.Warn("close dedup log", zap.Error(err))
	}
}
