package merge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

func writeStage(t *testing.T, dir string, stage pipeline.Stage, recs ...pipeline.Record) {
	t.Helper()
	var b strings.Builder
	for _, rec := range recs {
		line, err := pipeline.EncodeRecord(rec)
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
	}
	if err := os.WriteFile(stage.OutputFile(dir), []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergesByURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeStage(t, dir, pipeline.StageDiscovery,
		pipeline.DiscoveryRecord{SourceURL: "https://uconn.edu", DiscoveredURL: "https://uconn.edu/a", FirstSeen: now},
		pipeline.DiscoveryRecord{SourceURL: "https://uconn.edu", DiscoveredURL: "https://uconn.edu/b", FirstSeen: now},
	)
	writeStage(t, dir, pipeline.StageValidation,
		pipeline.ValidationRecord{URL: "https://uconn.edu/a", URLHash: "ha", StatusCode: 200, ContentLength: 10, IsValid: true, ValidatedAt: now},
	)
	writeStage(t, dir, pipeline.StageEnrichment,
		pipeline.EnrichmentRecord{URL: "https://uconn.edu/a", Title: "A", TextContent: "body", WordCount: 1, EnrichedAt: now},
	)

	merged, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}

	a := merged[0]
	if a.URL != "https://uconn.edu/a" {
		t.Fatalf("merged[0].URL = %q", a.URL)
	}
	if a.Discovery == nil || a.Validation == nil || a.Enrichment == nil {
		t.Fatalf("merged[0] sections: %+v", a)
	}
	if a.Validation.URLHash != "ha" || a.Enrichment.Title != "A" {
		t.Errorf("merged[0] field mismatch: %+v", a)
	}

	b := merged[1]
	if b.URL != "https://uconn.edu/b" {
		t.Fatalf("merged[1].URL = %q", b.URL)
	}
	if b.Discovery == nil || b.Validation != nil || b.Enrichment != nil {
		t.Errorf("stages that did not run must stay nil: %+v", b)
	}
}

func TestLoadMissingStageFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeStage(t, dir, pipeline.StageDiscovery,
		pipeline.DiscoveryRecord{SourceURL: "https://uconn.edu", DiscoveredURL: "https://uconn.edu/a"},
	)

	merged, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(merged) != 1 || merged[0].Validation != nil {
		t.Fatalf("merged = %+v", merged)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	records := []pipeline.MergedURLRecord{
		{URL: "https://uconn.edu/a", Validation: &pipeline.ValidationRecord{URL: "https://uconn.edu/a", URLHash: "ha"}},
	}
	path := filepath.Join(dir, "merged.jsonl")
	if err := WriteFile(path, records); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"url_hash":"ha"`) {
		t.Errorf("exported content missing fields: %s", data)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Errorf("expected one line, got %q", data)
	}
}
