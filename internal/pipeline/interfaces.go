package pipeline

import (
	"context"
	"time"
)

// DedupStore is the persistent set of previously-seen dedup keys. The
// in-memory index is owned exclusively by the store; callers only check
// membership and insert.
type DedupStore interface {
	// Seen reports whether key is already marked present.
	Seen(key string) bool
	// AddIfNew atomically checks and inserts. It returns true iff the
	// key was not previously present; across the store's lifetime at
	// most one caller ever receives true for a given key.
	AddIfNew(key string) bool
	// Count returns the current cardinality of the set.
	Count() int
	// Close flushes and releases the backing resource.
	Close() error
}

// RecordWriter is the append-only output channel handed to a stage
// producer. Write is an idempotent no-op for duplicate keys; it returns
// an error only on a corruption escalation or after termination.
type RecordWriter interface {
	Write(rec Record) error
}

// StatsRecorder receives per-attempt counters from a stage's concurrent
// workers.
type StatsRecorder interface {
	RecordInput()
	RecordOutput()
	RecordError()
}

// ProducerInput bundles the resources a stage producer is handed for
// the duration of its run.
type ProducerInput struct {
	// Seeds is the starting URL list; set for the discovery stage only.
	Seeds []string
	// InputPath is the prior stage's persisted output; empty for
	// discovery.
	InputPath string
	Dedup     DedupStore
	Writer    RecordWriter
	Stats     StatsRecorder
}

// Producer is a stage's record source: a swappable black box that emits
// candidate records through the writer. It returns nil on normal
// completion and surfaces writer escalations by returning them.
type Producer interface {
	ProducerStage() Stage
	Produce(ctx context.Context, in ProducerInput) error
}

// Publisher emits stage lifecycle events. Publishing is best-effort;
// callers log failures and continue.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Archiver copies a stage's closed output file to longer-term storage
// after the stage advances. Best-effort.
type Archiver interface {
	Archive(ctx context.Context, runID string, stage Stage, path string) (string, error)
}

// Clock abstracts wall-clock reads so tests can control time.
type Clock interface {
	Now() time.Time
}
