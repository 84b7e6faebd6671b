// Package postgres implements a dedup store over a single-column
// Postgres keys table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool behind the store.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// pgxIface is the slice of pgxpool.Pool the store uses; pgxmock
// satisfies it in tests.
type pgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store implements pipeline.DedupStore over a keys table. The table is
// the durable replay source; membership checks hit the in-memory index.
type Store struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	pool   pgxIface
	table  string
	logger *zap.Logger
	closed bool
}

// Open connects a pool and loads every key into the in-memory index.
// Failures wrap pipeline.ErrStorageUnavailable.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: dedup.postgres.dsn is required", pipeline.ErrStorageUnavailable)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse postgres dsn: %v", pipeline.ErrStorageUnavailable, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", pipeline.ErrStorageUnavailable, err)
	}
	store, err := OpenWithPool(ctx, pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// OpenWithPool builds the store over an existing pool. It creates the
// keys table when absent and replays all rows into the index.
func OpenWithPool(ctx context.Context, pool pgxIface, table string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = "dedup_keys"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", pipeline.ErrStorageUnavailable, table)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, added_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`, table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("%w: ensure keys table: %v", pipeline.ErrStorageUnavailable, err)
	}

	rows, err := pool.Query(ctx, fmt.Sprintf(`SELECT key FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("%w: load dedup keys: %v", pipeline.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: scan dedup key: %v", pipeline.ErrStorageUnavailable, err)
		}
		keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate dedup keys: %v", pipeline.ErrStorageUnavailable, err)
	}

	logger.Info("dedup store loaded",
		zap.String("backend", "postgres"),
		zap.String("table", table),
		zap.Int("keys", len(keys)),
	)
	return &Store{keys: keys, pool: pool, table: table, logger: logger}, nil
}

// Seen reports whether key is present in the index.
func (s *Store) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// AddIfNew checks and inserts under one lock. The row is written with
// ON CONFLICT DO NOTHING before true is returned.
func (s *Store) AddIfNew(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.keys[key]; ok {
		return false
	}

	query := fmt.Sprintf(`INSERT INTO %s (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, s.table)
	if _, err := s.pool.Exec(context.Background(), query, key); err != nil {
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

// Close releases the pool. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}
