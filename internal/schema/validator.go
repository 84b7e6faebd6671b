package schema

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"
)

// Report summarizes one gate's validation of a stage output file.
type Report struct {
	SchemaName     string  `json:"schema_name"`
	SampleRate     float64 `json:"sample_rate"`
	RecordsChecked int     `json:"records_checked"`
	RecordsFailed  int     `json:"records_failed"`
	SuccessRate    float64 `json:"success_rate"`
	IsAcceptable   bool    `json:"is_acceptable"`
}

// Config tunes the validator.
type Config struct {
	// MinSuccessRate is the acceptability floor for a report.
	MinSuccessRate float64 `mapstructure:"min_success_rate"`
	// Rand drives line sampling; tests seed it for determinism.
	Rand *rand.Rand
}

// DefaultConfig returns the production validator settings.
func DefaultConfig() Config {
	return Config{MinSuccessRate: 0.95}
}

// Validator samples persisted stage output and checks each sampled
// record against its stage's contract. It opens files read-only and
// never mutates them or the dedup store.
type Validator struct {
	minSuccessRate float64
	rng            *rand.Rand
	logger         *zap.Logger
}

// New creates a Validator.
func New(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	minRate := cfg.MinSuccessRate
	if minRate <= 0 {
		minRate = DefaultConfig().MinSuccessRate
	}
	return &Validator{minSuccessRate: minRate, rng: rng, logger: logger}
}

// ValidateFile samples the file's records at sampleRate and reports the
// observed success rate. Each line is sampled independently, so the
// sample is representative across the whole file rather than a prefix.
//
// An absent file returns (nil, nil): the caller treats that as a
// skipped gate, since an empty crawl may legitimately produce no
// output. With failOnError set, the first violation returns a hard
// error naming the line and cause.
func (v *Validator) ValidateFile(path string, sc Schema, sampleRate float64, failOnError bool) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			v.logger.Info("stage output absent, gate skipped",
				zap.String("schema", sc.Name),
				zap.String("path", path),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("open %s for validation: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			v.logger.Warn("close validated file", zap.Error(err))
		}
	}()

	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}

	report := &Report{SchemaName: sc.Name, SampleRate: sampleRate}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if sampleRate < 1 && v.rng.Float64() >= sampleRate {
			continue
		}
		report.RecordsChecked++
		if err := sc.CheckLine(line); err != nil {
			if failOnError {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
			}
			report.RecordsFailed++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	if report.RecordsChecked == 0 {
		report.SuccessRate = 1
	} else {
		report.SuccessRate = float64(report.RecordsChecked-report.RecordsFailed) / float64(report.RecordsChecked)
	}
	report.IsAcceptable = report.SuccessRate >= v.minSuccessRate

	v.logger.Info("validation report",
		zap.String("schema", sc.Name),
		zap.Float64("sample_rate", report.SampleRate),
		zap.Int("checked", report.RecordsChecked),
		zap.Int("failed", report.RecordsFailed),
		zap.Float64("success_rate", report.SuccessRate),
		zap.Bool("acceptable", report.IsAcceptable),
	)
	return report, nil
}
