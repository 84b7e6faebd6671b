package file

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

func TestOpenAddReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.jsonl")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if !s.AddIfNew(k) {
			t.Fatalf("AddIfNew(%q) = false on fresh store", k)
		}
	}
	if s.AddIfNew("b") {
		t.Fatal("AddIfNew returned true for existing key")
	}
	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	// Reopen replays the log: same cardinality, same membership.
	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()
	if s2.Count() != 3 {
		t.Fatalf("Count() after reopen = %d, want 3", s2.Count())
	}
	if s2.AddIfNew("a") {
		t.Fatal("replayed key accepted as new")
	}
	if !s2.AddIfNew("d") {
		t.Fatal("new key rejected after reopen")
	}
}

func TestOpenSkipsIsolatedCorruptLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.jsonl")
	content := `{"key":"a","added_at":"2026-01-02T03:04:05Z"}
{not json
{"key":"b","added_at":"2026-01-02T03:04:06Z"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	if !s.Seen("a") || !s.Seen("b") {
		t.Fatal("valid keys lost around corrupt line")
	}
}

func TestOpenFailsWhenNothingParses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.jsonl")
	if err := os.WriteFile(path, []byte("junk\nmore junk\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, nil)
	if err == nil {
		t.Fatal("expected error for fully corrupt log")
	}
	if !errors.Is(err, pipeline.ErrStorageUnavailable) {
		t.Fatalf("error = %v, want ErrStorageUnavailable", err)
	}
}

func TestOpenUnwritablePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory at the log path makes the open fail.
	path := filepath.Join(dir, "seen.jsonl")
	if err := os.Mkdir(path, 0o750); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, nil)
	if !errors.Is(err, pipeline.ErrStorageUnavailable) {
		t.Fatalf("error = %v, want ErrStorageUnavailable", err)
	}
}

func TestAddIfNewConcurrent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.jsonl")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddIfNew("contested") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Fatalf("AddIfNew returned true %d times, want exactly 1", got)
	}
}
