package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// fakeClock returns scripted times in sequence, then repeats the last.
type fakeClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.times) > 1 {
		t := c.times[0]
		c.times = c.times[1:]
		return t
	}
	return c.times[0]
}

func TestStageStatsLifecycle(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{times: []time.Time{start, start.Add(90 * time.Second)}}

	s := Start(pipeline.StageDiscovery, clock)
	s.RecordInput()
	s.RecordInput()
	s.RecordOutput()
	s.RecordError()

	snap := s.Finish()
	if snap.Stage != "discovery" {
		t.Errorf("Stage = %q", snap.Stage)
	}
	if snap.InputCount != 2 || snap.OutputCount != 1 || snap.ErrorCount != 1 {
		t.Errorf("counters = %d/%d/%d", snap.InputCount, snap.OutputCount, snap.ErrorCount)
	}
	if snap.DurationSeconds != 90 {
		t.Errorf("DurationSeconds = %v, want 90", snap.DurationSeconds)
	}

	// Increments after Finish are dropped, and the snapshot is stable.
	s.RecordOutput()
	again := s.Finish()
	if again != snap {
		t.Errorf("Finish() changed after freeze: %+v vs %+v", again, snap)
	}
}

func TestStageStatsConcurrent(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{times: []time.Time{time.Now()}}
	s := Start(pipeline.StageValidation, clock)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordInput()
			s.RecordOutput()
		}()
	}
	wg.Wait()

	snap := s.Finish()
	if snap.InputCount != 50 || snap.OutputCount != 50 {
		t.Fatalf("counters = %d/%d, want 50/50", snap.InputCount, snap.OutputCount)
	}
}
