// Package schema checks stage output files against each stage's record
// contract, sampling lines at a configurable rate and producing an
// acceptability report for the orchestrator's gate.
package schema

import (
	"encoding/json"
	"math"
	"time"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Kind is the expected JSON shape of one field.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindBool
	KindTime
	KindStringList
)

// Field is one entry in a stage's record contract.
type Field struct {
	Name string
	Kind Kind
	// NonNegative applies to integer and number kinds.
	NonNegative bool
	// Optional fields may be absent without failing the record.
	Optional bool
}

// Schema is the closed per-stage field contract. Schemas are resolved
// from the stage enum at compile time, never by name lookup.
type Schema struct {
	Name   string
	Fields []Field
}

var (
	discoverySchema = Schema{
		Name: "discovery",
		Fields: []Field{
			{Name: "source_url", Kind: KindString},
			{Name: "discovered_url", Kind: KindString},
			{Name: "first_seen", Kind: KindTime},
			{Name: "discovery_depth", Kind: KindInteger, NonNegative: true},
		},
	}

	validationSchema = Schema{
		Name: "validation",
		Fields: []Field{
			{Name: "url", Kind: KindString},
			{Name: "url_hash", Kind: KindString},
			{Name: "status_code", Kind: KindInteger},
			{Name: "content_type", Kind: KindString},
			{Name: "content_length", Kind: KindInteger, NonNegative: true},
			{Name: "response_time", Kind: KindNumber, NonNegative: true},
			{Name: "is_valid", Kind: KindBool},
			{Name: "error_message", Kind: KindString, Optional: true},
			{Name: "validated_at", Kind: KindTime},
		},
	}

	enrichmentSchema = Schema{
		Name: "enrichment",
		Fields: []Field{
			{Name: "url", Kind: KindString},
			{Name: "title", Kind: KindString},
			{Name: "text_content", Kind: KindString},
			{Name: "word_count", Kind: KindInteger, NonNegative: true},
			{Name: "entities", Kind: KindStringList},
			{Name: "keywords", Kind: KindStringList},
			{Name: "content_tags", Kind: KindStringList},
			{Name: "has_pdf_links", Kind: KindBool},
			{Name: "has_audio_links", Kind: KindBool},
			{Name: "status_code", Kind: KindInteger},
			{Name: "content_type", Kind: KindString},
			{Name: "enriched_at", Kind: KindTime},
		},
	}
)

// For returns the record contract for a stage.
func For(stage pipeline.Stage) Schema {
	switch stage {
	case pipeline.StageDiscovery:
		return discoverySchema
	case pipeline.StageValidation:
		return validationSchema
	default:
		return enrichmentSchema
	}
}

// CheckLine validates one serialized record against the contract. It
// returns the first violation found, or nil when the record conforms.
func (s Schema) CheckLine(line []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return &RecordError{Schema: s.Name, Cause: "undecodable record"}
	}
	for _, f := range s.Fields {
		val, ok := obj[f.Name]
		if !ok || val == nil {
			// Encoders emit null for empty list fields; that is an
			// empty set, not a missing field.
			if f.Optional || f.Kind == KindStringList {
				continue
			}
			return &RecordError{Schema: s.Name, Field: f.Name, Cause: "missing required field"}
		}
		if err := f.check(val); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) check(val any) error {
	fail := func(cause string) error {
		return &RecordError{Field: f.Name, Cause: cause}
	}
	switch f.Kind {
	case KindString:
		if _, ok := val.(string); !ok {
			return fail("not a string")
		}
	case KindInteger:
		n, ok := val.(float64)
		if !ok || n != math.Trunc(n) {
			return fail("not an integer")
		}
		if f.NonNegative && n < 0 {
			return fail("negative value")
		}
	case KindNumber:
		n, ok := val.(float64)
		if !ok {
			return fail("not a number")
		}
		if f.NonNegative && n < 0 {
			return fail("negative value")
		}
	case KindBool:
		if _, ok := val.(bool); !ok {
			return fail("not a boolean")
		}
	case KindTime:
		s, ok := val.(string)
		if !ok {
			return fail("not a timestamp")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fail("unparseable timestamp")
		}
	case KindStringList:
		items, ok := val.([]any)
		if !ok {
			return fail("not a string list")
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fail("non-string list element")
			}
		}
	}
	return nil
}

// RecordError describes one record's contract violation.
type RecordError struct {
	Schema string
	Field  string
	Cause  string
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return e.Cause
	}
	return e.Field + ": " + e.Cause
}
