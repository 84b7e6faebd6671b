// Package merge joins the three stage output files into per-URL union
// records.
package merge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Load reads each stage's output under dir and merges records by URL.
// Sections for stages that produced nothing for a URL stay nil; the URL
// itself is present in every merged record. Absent stage files are
// skipped. The result is sorted by URL for stable exports.
func Load(dir string) ([]pipeline.MergedURLRecord, error) {
	byURL := make(map[string]*pipeline.MergedURLRecord)

	get := func(raw string) *pipeline.MergedURLRecord {
		key, err := pipeline.NormalizeURL(raw)
		if err != nil {
			key = raw
		}
		m, ok := byURL[key]
		if !ok {
			m = &pipeline.MergedURLRecord{URL: key}
			byURL[key] = m
		}
		return m
	}

	for _, stage := range pipeline.Stages {
		err := eachRecord(stage, stage.OutputFile(dir), func(rec pipeline.Record) {
			switch r := rec.(type) {
			case pipeline.DiscoveryRecord:
				get(r.DiscoveredURL).Discovery = &r
			case pipeline.ValidationRecord:
				get(r.URL).Validation = &r
			case pipeline.EnrichmentRecord:
				get(r.URL).Enrichment = &r
			}
		})
		if err != nil {
			return nil, err
		}
	}

	merged := make([]pipeline.MergedURLRecord, 0, len(byURL))
	for _, m := range byURL {
		merged = append(merged, *m)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].URL < merged[j].URL })
	return merged, nil
}

// eachRecord streams a stage file's decodable records through fn.
// Undecodable lines are skipped; the stage gate already accounted for
// them.
func eachRecord(stage pipeline.Stage, path string, fn func(pipeline.Record)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s output: %w", stage, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := pipeline.DecodeRecord(stage, line)
		if err != nil {
			continue
		}
		fn(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s output: %w", stage, err)
	}
	return nil
}

// WriteFile exports merged records as one JSON object per line.
func WriteFile(path string, records []pipeline.MergedURLRecord) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create merged output: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode merged record for %s: %w", rec.URL, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write merged record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush merged output: %w", err)
	}
	return nil
}
