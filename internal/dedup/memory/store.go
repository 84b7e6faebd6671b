// Package memory implements an in-memory dedup store for development
// and tests.
package memory

import "sync"

// Store implements pipeline.DedupStore with a plain map. Nothing
// survives process exit.
type Store struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// New creates an empty in-memory dedup store.
func New() *Store {
	return &Store{keys: make(map[string]struct{})}
}

// Seen reports whether key is present.
func (s *Store) Seen(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// AddIfNew inserts key and returns true iff it was not already present.
func (s *Store) AddIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Count returns the number of keys present.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
