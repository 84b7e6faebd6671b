// Package journal provides the append-only per-stage record writer,
// including restart replay and the integrity circuit breaker.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/metrics"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Config tunes writer durability and the integrity breaker thresholds.
type Config struct {
	// Fsync forces an fsync after every accepted append.
	Fsync bool `mapstructure:"fsync"`
	// MaxEmptyRecords is the absolute floor of empty-body records
	// before the breaker may trip.
	MaxEmptyRecords int64 `mapstructure:"max_empty_records"`
	// MaxEmptyRatio is the empty/(seen+1) ratio ceiling.
	MaxEmptyRatio float64 `mapstructure:"max_empty_ratio"`
}

// DefaultConfig returns the production writer settings.
func DefaultConfig() Config {
	return Config{Fsync: true, MaxEmptyRecords: 50, MaxEmptyRatio: 0.02}
}

// Counts is a point-in-time view of the writer's record accounting.
type Counts struct {
	Written    int64
	Duplicates int64
	Empty      int64
	Malformed  int64
	Errors     int64
	Replayed   int64
}

// Writer appends one stage's records to its output file, one JSON line
// per record, enforcing write-once semantics against the dedup store.
// Records already persisted are never rewritten or removed; once closed,
// the file is a strict superset of its content at any earlier close.
type Writer struct {
	stage  pipeline.Stage
	store  pipeline.DedupStore
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	file    *os.File
	counts  Counts
	seen    int64 // records this writer marked seen (replayed + written)
	tripped *pipeline.CorruptionError
	closed  bool
}

// Open acquires the stage output file for appending and replays its
// existing records into the dedup store, so re-runs over a partially
// written output never reintroduce duplicates. Unreadable replay lines
// are counted and skipped. An unopenable path wraps
// pipeline.ErrStorageUnavailable.
func Open(stage pipeline.Stage, path string, store pipeline.DedupStore, cfg Config, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", pipeline.ErrStorageUnavailable, err)
	}

	w := &Writer{stage: stage, store: store, cfg: cfg, logger: logger}

	if err := w.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s output %s: %v", pipeline.ErrStorageUnavailable, stage, path, err)
	}
	w.file = f

	logger.Info("journal opened",
		zap.Stringer("stage", stage),
		zap.String("path", path),
		zap.Int64("replayed", w.counts.Replayed),
	)
	return w, nil
}

// replay seeds the dedup store from records already on disk.
func (w *Writer) replay(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: replay %s output: %v", pipeline.ErrStorageUnavailable, w.stage, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("close replay file", zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var bad int64
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := pipeline.DecodeRecord(w.stage, line)
		if err != nil {
			bad++
			continue
		}
		key := rec.DedupKey()
		if key == "" {
			bad++
			continue
		}
		w.store.AddIfNew(key)
		w.counts.Replayed++
		w.seen++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scan %s output: %v", pipeline.ErrStorageUnavailable, w.stage, err)
	}
	if bad > 0 {
		w.logger.Warn("skipped unreadable lines during replay",
			zap.Stringer("stage", w.stage),
			zap.Int64("lines", bad),
		)
	}
	return nil
}

// Write runs one record through the dedup and integrity path and, if it
// survives, appends it durably. Dropped records return nil: duplicates
// and malformed or empty-body records are absorbed into the counters.
// The two error returns are the breaker escalation itself (a
// *pipeline.CorruptionError) and, on every call after the trip,
// pipeline.ErrStageTerminated.
//
// The lock covers exactly check + append + mark, never producer I/O, so
// concurrent workers serialize only their bookkeeping.
func (w *Writer) Write(rec pipeline.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%s journal: write after close", w.stage)
	}
	if w.tripped != nil {
		w.counts.Errors++
		metrics.ObserveRecordDropped(w.stage.String(), "terminated")
		return fmt.Errorf("%w: %s", pipeline.ErrStageTerminated, w.tripped.Error())
	}

	key := rec.DedupKey()
	if key == "" {
		w.counts.Malformed++
		metrics.ObserveRecordDropped(w.stage.String(), "malformed")
		return nil
	}

	if w.store.Seen(key) {
		w.counts.Duplicates++
		metrics.ObserveRecordDropped(w.stage.String(), "duplicate")
		return nil
	}

	if rec.EmptyBody() {
		w.counts.Empty++
		metrics.ObserveRecordDropped(w.stage.String(), "empty_body")
		ratio := float64(w.counts.Empty) / float64(w.seen+1)
		if w.counts.Empty > w.cfg.MaxEmptyRecords && ratio > w.cfg.MaxEmptyRatio {
			w.tripped = &pipeline.CorruptionError{
				Stage:      w.stage,
				EmptyCount: w.counts.Empty,
				SeenCount:  w.seen,
				Ratio:      ratio,
			}
			metrics.ObserveBreakerTrip(w.stage.String())
			w.logger.Error("integrity breaker tripped",
				zap.Stringer("stage", w.stage),
				zap.Int64("empty", w.counts.Empty),
				zap.Int64("seen", w.seen),
				zap.Float64("ratio", ratio),
			)
			return w.tripped
		}
		return nil
	}

	line, err := pipeline.EncodeRecord(rec)
	if err != nil {
		w.counts.Malformed++
		metrics.ObserveRecordDropped(w.stage.String(), "malformed")
		return nil
	}

	if err := w.append(line); err != nil {
		// One retry per record; a second failure is a transient IO
		// loss, never a stage abort.
		if err = w.append(line); err != nil {
			w.counts.Errors++
			metrics.ObserveRecordDropped(w.stage.String(), "io_error")
			w.logger.Error("append record failed",
				zap.Stringer("stage", w.stage),
				zap.String("key", key),
				zap.Error(err),
			)
			return nil
		}
	}

	w.store.AddIfNew(key)
	w.seen++
	w.counts.Written++
	metrics.ObserveRecordWritten(w.stage.String())
	return nil
}

func (w *Writer) append(line []byte) error {
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if w.cfg.Fsync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync journal: %w", err)
		}
	}
	return nil
}

// Tripped returns the breaker escalation, or nil if the writer is
// healthy.
func (w *Writer) Tripped() *pipeline.CorruptionError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tripped
}

// Counts returns the writer's current record accounting.
func (w *Writer) Counts() Counts {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts
}

// Close flushes and releases the output file. Safe to call twice and on
// every exit path, including after a breaker trip.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		w.logger.Warn("sync journal on close", zap.Error(err))
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close %s journal: %w", w.stage, err)
	}
	return nil
}
