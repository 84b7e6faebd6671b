package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the contract the append-only writer needs from a stage's
// output rows. Concrete record types implement it; everything else about
// a record is opaque to the integrity core.
type Record interface {
	// RecordStage identifies which stage produced the record.
	RecordStage() Stage
	// DedupKey returns the stable identifier used for at-most-once
	// processing. An empty key marks the record malformed.
	DedupKey() string
	// EmptyBody reports the cheap stage-independent corruption
	// heuristic: a record whose payload carries no content.
	EmptyBody() bool
}

// DiscoveryRecord is one URL found by the stage 1 crawler.
type DiscoveryRecord struct {
	SourceURL      string    `json:"source_url"`
	DiscoveredURL  string    `json:"discovered_url"`
	FirstSeen      time.Time `json:"first_seen"`
	DiscoveryDepth int       `json:"discovery_depth"`
}

func (r DiscoveryRecord) RecordStage() Stage { return StageDiscovery }

func (r DiscoveryRecord) DedupKey() string {
	key, err := NormalizeURL(r.DiscoveredURL)
	if err != nil {
		return ""
	}
	return key
}

func (r DiscoveryRecord) EmptyBody() bool { return r.DiscoveredURL == "" }

// ValidationRecord is the stage 2 verdict for one discovered URL.
// URLHash is the join key shared by every downstream stage.
type ValidationRecord struct {
	URL           string    `json:"url"`
	URLHash       string    `json:"url_hash"`
	StatusCode    int       `json:"status_code"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	ResponseTime  float64   `json:"response_time"`
	IsValid       bool      `json:"is_valid"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ValidatedAt   time.Time `json:"validated_at"`
}

func (r ValidationRecord) RecordStage() Stage { return StageValidation }

func (r ValidationRecord) DedupKey() string { return r.URLHash }

func (r ValidationRecord) EmptyBody() bool { return r.ContentLength == 0 }

// EnrichmentRecord is the stage 3 content extraction for one valid URL.
type EnrichmentRecord struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	TextContent   string    `json:"text_content"`
	WordCount     int       `json:"word_count"`
	Entities      []string  `json:"entities"`
	Keywords      []string  `json:"keywords"`
	ContentTags   []string  `json:"content_tags"`
	HasPDFLinks   bool      `json:"has_pdf_links"`
	HasAudioLinks bool      `json:"has_audio_links"`
	StatusCode    int       `json:"status_code"`
	ContentType   string    `json:"content_type"`
	EnrichedAt    time.Time `json:"enriched_at"`
}

func (r EnrichmentRecord) RecordStage() Stage { return StageEnrichment }

func (r EnrichmentRecord) DedupKey() string {
	key, err := NormalizeURL(r.URL)
	if err != nil {
		return ""
	}
	return key
}

func (r EnrichmentRecord) EmptyBody() bool { return r.TextContent == "" }

// MergedURLRecord is the cross-stage union for one URL. Sections for
// stages that have not run are nil; URL is always present.
type MergedURLRecord struct {
	URL        string            `json:"url"`
	Discovery  *DiscoveryRecord  `json:"discovery,omitempty"`
	Validation *ValidationRecord `json:"validation,omitempty"`
	Enrichment *EnrichmentRecord `json:"enrichment,omitempty"`
}

// DecodeRecord decodes one persisted output line back into the stage's
// concrete record type. Used for writer replay and merging.
func DecodeRecord(stage Stage, line []byte) (Record, error) {
	switch stage {
	case StageDiscovery:
		var r DiscoveryRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode discovery record: %w", err)
		}
		return r, nil
	case StageValidation:
		var r ValidationRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode validation record: %w", err)
		}
		return r, nil
	case StageEnrichment:
		var r EnrichmentRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("decode enrichment record: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("decode record: unknown stage %d", int(stage))
	}
}

// EncodeRecord marshals a record into its single-line JSON form, newline
// terminated.
func EncodeRecord(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.RecordStage(), err)
	}
	return append(data, '\n'), nil
}
