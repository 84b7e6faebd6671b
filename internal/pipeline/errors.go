package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's error taxonomy. Per-record failures
// (TransientIO, malformed records) never surface as errors at all; these
// sentinels cover the stage- and pipeline-fatal classes.
var (
	// ErrStorageUnavailable marks a dedup store or stage output file
	// that could not be opened or loaded. Pipeline-fatal at stage start.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSystemicCorruption marks a breach of the empty-body thresholds:
	// the stage's input source is considered systemically broken.
	ErrSystemicCorruption = errors.New("systemic corruption")

	// ErrStageTerminated is returned by Writer.Write after the integrity
	// breaker has tripped; no further records are admitted.
	ErrStageTerminated = errors.New("stage terminated")
)

// CorruptionError carries the counter state at the moment the integrity
// breaker tripped. It unwraps to ErrSystemicCorruption.
type CorruptionError struct {
	Stage      Stage
	EmptyCount int64
	SeenCount  int64
	Ratio      float64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("%s stage: systemic corruption: %d empty-body records over %d seen (ratio %.4f)",
		e.Stage, e.EmptyCount, e.SeenCount, e.Ratio)
}

func (e *CorruptionError) Unwrap() error {
	return ErrSystemicCorruption
}
