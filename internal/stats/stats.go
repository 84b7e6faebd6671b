// Package stats accumulates per-stage pipeline counters.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Snapshot is the immutable view of a finished stage run.
type Snapshot struct {
	Stage           string    `json:"stage"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	InputCount      int64     `json:"input_count"`
	OutputCount     int64     `json:"output_count"`
	ErrorCount      int64     `json:"error_count"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// StageStats counts one stage's attempts. The Record methods are safe
// under the stage's concurrent workers; increments after Finish are
// dropped.
type StageStats struct {
	stage pipeline.Stage
	clock pipeline.Clock

	input  atomic.Int64
	output atomic.Int64
	errs   atomic.Int64

	mu       sync.Mutex
	started  time.Time
	finished bool
	snapshot Snapshot
}

// Start creates stats for a stage run, stamping the start time.
func Start(stage pipeline.Stage, clock pipeline.Clock) *StageStats {
	s := &StageStats{stage: stage, clock: clock}
	s.started = clock.Now()
	return s
}

// RecordInput counts one attempted input record.
func (s *StageStats) RecordInput() {
	if s.done() {
		return
	}
	s.input.Add(1)
}

// RecordOutput counts one accepted output record.
func (s *StageStats) RecordOutput() {
	if s.done() {
		return
	}
	s.output.Add(1)
}

// RecordError counts one failed attempt.
func (s *StageStats) RecordError() {
	if s.done() {
		return
	}
	s.errs.Add(1)
}

func (s *StageStats) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Finish stamps the end time and freezes the counters. The returned
// Snapshot is the stage's permanent record; repeated calls return the
// same one.
func (s *StageStats) Finish() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.snapshot
	}
	end := s.clock.Now()
	s.snapshot = Snapshot{
		Stage:           s.stage.String(),
		StartTime:       s.started,
		EndTime:         end,
		InputCount:      s.input.Load(),
		OutputCount:     s.output.Load(),
		ErrorCount:      s.errs.Load(),
		DurationSeconds: end.Sub(s.started).Seconds(),
	}
	s.finished = true
	return s.snapshot
}
