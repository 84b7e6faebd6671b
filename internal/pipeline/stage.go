// Package pipeline defines the shared contracts of the crawl pipeline:
// the stage enumeration, the record types each stage persists, the
// deduplication store interface, and the error taxonomy. Providers and
// stage producers live in subpackages and depend only on this package.
package pipeline

import (
	"fmt"
	"path/filepath"
)

// Stage identifies one of the three sequential pipeline stages. The set
// is closed: every stage resolves at compile time to its record type,
// schema contract, and output filename.
type Stage int

const (
	StageDiscovery Stage = iota
	StageValidation
	StageEnrichment
)

// Stages lists all stages in execution order.
var Stages = []Stage{StageDiscovery, StageValidation, StageEnrichment}

// String returns the stage's canonical lowercase name.
func (s Stage) String() string {
	switch s {
	case StageDiscovery:
		return "discovery"
	case StageValidation:
		return "validation"
	case StageEnrichment:
		return "enrichment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// OutputFile returns the stage's output path under dir.
func (s Stage) OutputFile(dir string) string {
	return filepath.Join(dir, s.String()+".jsonl")
}

// Next returns the following stage and false when s is the last one.
func (s Stage) Next() (Stage, bool) {
	if s >= StageEnrichment {
		return s, false
	}
	return s + 1, true
}
