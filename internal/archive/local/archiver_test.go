package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

func TestArchiveCopiesStageOutput(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	a, err := New(Config{BaseDir: base})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	src := filepath.Join(t.TempDir(), "discovery.jsonl")
	if err := os.WriteFile(src, []byte("{\"a\":1}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	uri, err := a.Archive(context.Background(), "run-1", pipeline.StageDiscovery, src)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.HasPrefix(uri, "file://") {
		t.Fatalf("uri = %q", uri)
	}

	copied, err := os.ReadFile(filepath.Join(base, "runs", "run-1", "discovery.jsonl"))
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(copied) != "{\"a\":1}\n" {
		t.Fatalf("archived content = %q", copied)
	}
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base dir")
	}
}

func TestArchiveMissingSource(t *testing.T) {
	t.Parallel()

	a, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Archive(context.Background(), "run-1", pipeline.StageDiscovery, filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
