package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDedupKeys(t *testing.T) {
	t.Parallel()

	d := DiscoveryRecord{SourceURL: "https://uconn.edu", DiscoveredURL: "https://UConn.edu/a/"}
	if got := d.DedupKey(); got != "https://uconn.edu/a" {
		t.Errorf("discovery key = %q", got)
	}
	v := ValidationRecord{URL: "https://uconn.edu/a", URLHash: "abc123"}
	if got := v.DedupKey(); got != "abc123" {
		t.Errorf("validation key = %q", got)
	}
	e := EnrichmentRecord{URL: "https://uconn.edu/a#x"}
	if got := e.DedupKey(); got != "https://uconn.edu/a" {
		t.Errorf("enrichment key = %q", got)
	}

	bad := DiscoveryRecord{DiscoveredURL: "not a url"}
	if bad.DedupKey() != "" {
		t.Error("expected empty key for unparseable URL")
	}
}

func TestEmptyBody(t *testing.T) {
	t.Parallel()

	if !(DiscoveryRecord{}).EmptyBody() {
		t.Error("empty discovered_url should flag empty body")
	}
	if !(ValidationRecord{ContentLength: 0}).EmptyBody() {
		t.Error("zero content_length should flag empty body")
	}
	if (ValidationRecord{ContentLength: 12}).EmptyBody() {
		t.Error("non-zero content_length flagged empty")
	}
	if !(EnrichmentRecord{}).EmptyBody() {
		t.Error("empty text_content should flag empty body")
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	t.Parallel()

	rec := ValidationRecord{
		URL:           "https://uconn.edu/a",
		URLHash:       "deadbeef",
		StatusCode:    200,
		ContentType:   "text/html",
		ContentLength: 512,
		ResponseTime:  0.25,
		IsValid:       true,
		ValidatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	line, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Fatal("encoded record is not newline terminated")
	}
	if strings.Count(string(line), "\n") != 1 {
		t.Fatal("encoded record spans multiple lines")
	}

	decoded, err := DecodeRecord(StageValidation, line)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	got, ok := decoded.(ValidationRecord)
	if !ok {
		t.Fatalf("decoded type = %T", decoded)
	}
	if got != rec {
		t.Errorf("round trip mismatch: got %+v want %+v", got, rec)
	}

	if _, err := DecodeRecord(StageDiscovery, []byte("{garbage")); err == nil {
		t.Error("expected decode error for garbage line")
	}
}

func TestCorruptionErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := &CorruptionError{Stage: StageValidation, EmptyCount: 60, SeenCount: 940, Ratio: 0.06}
	if !errors.Is(err, ErrSystemicCorruption) {
		t.Fatal("CorruptionError does not unwrap to ErrSystemicCorruption")
	}
	if !strings.Contains(err.Error(), "validation") {
		t.Errorf("error text missing stage: %s", err)
	}
}

func TestStageOutputFile(t *testing.T) {
	t.Parallel()

	if got := StageDiscovery.OutputFile("/data/out"); got != "/data/out/discovery.jsonl" {
		t.Errorf("OutputFile() = %q", got)
	}
	next, ok := StageDiscovery.Next()
	if !ok || next != StageValidation {
		t.Errorf("Next() = %v, %v", next, ok)
	}
	if _, ok := StageEnrichment.Next(); ok {
		t.Error("enrichment should be terminal")
	}
}
