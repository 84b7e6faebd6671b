package memory

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestAddIfNewOnce(t *testing.T) {
	t.Parallel()

	s := New()
	if !s.AddIfNew("k1") {
		t.Fatal("first AddIfNew returned false")
	}
	if s.AddIfNew("k1") {
		t.Fatal("second AddIfNew returned true")
	}
	if !s.Seen("k1") {
		t.Fatal("Seen() = false after insert")
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
}

func TestAddIfNewConcurrent(t *testing.T) {
	t.Parallel()

	s := New()
	const callers = 64

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddIfNew("same-key") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("AddIfNew returned true %d times, want exactly 1", got)
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
}
