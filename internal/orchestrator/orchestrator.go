// Package orchestrator sequences the pipeline stages, gating each
// transition on the schema validator's verdict. It is the single
// authority for continue/halt decisions: components below it absorb
// per-record errors, and everything stage- or pipeline-fatal propagates
// here.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/journal"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/metrics"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/schema"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stats"
)

// Outcome is a stage gate's resolution.
type Outcome string

const (
	OutcomeAdvance        Outcome = "advance"
	OutcomeWarnAndAdvance Outcome = "warn_and_advance"
	OutcomeHalt           Outcome = "halt"
)

// Halt reasons surfaced in an aborted run's report.
const (
	ReasonSystemicCorruption  = "systemic_corruption"
	ReasonValidationShortfall = "validation_shortfall"
	ReasonStorageUnavailable  = "storage_unavailable"
	ReasonProducerFailure     = "producer_failure"
)

// Config tunes gate policy and file locations.
type Config struct {
	// OutputDir holds the per-stage output files and the run report.
	OutputDir string `mapstructure:"output_dir"`
	// SampleRate is the fraction of records the gate inspects.
	SampleRate float64 `mapstructure:"sample_rate"`
	// BlockOnShortfall turns an unacceptable validation report into a
	// halt instead of a logged warning.
	BlockOnShortfall bool `mapstructure:"block_on_shortfall"`
	// FailFast makes the gate raise on the first record violation.
	FailFast bool `mapstructure:"fail_fast"`
}

// StageResult captures one stage's run for the report.
type StageResult struct {
	Stage       string         `json:"stage"`
	Outcome     Outcome        `json:"outcome"`
	Stats       stats.Snapshot `json:"stats"`
	Report      *schema.Report `json:"validation,omitempty"`
	GateSkipped bool           `json:"gate_skipped,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RunReport is the user-visible record of a full pipeline run. A halted
// run names the stage, the reason, and all statistics collected to the
// halt point.
type RunReport struct {
	RunID     string        `json:"run_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Stages    []StageResult `json:"stages"`
	Terminal  string        `json:"terminal"` // complete | aborted
	Reason    string        `json:"reason,omitempty"`
}

// Orchestrator drives Pending -> Running -> Gating for each stage in
// order, strictly sequentially: stage N+1 does not exist until stage
// N's output file is closed and gated.
type Orchestrator struct {
	cfg       Config
	writerCfg journal.Config
	store     pipeline.DedupStore
	validator *schema.Validator
	producers map[pipeline.Stage]pipeline.Producer
	publisher pipeline.Publisher
	archiver  pipeline.Archiver
	clock     pipeline.Clock
	logger    *zap.Logger
}

// New assembles an Orchestrator. Publisher and archiver may be nil;
// everything else is required.
func New(
	cfg Config,
	writerCfg journal.Config,
	store pipeline.DedupStore,
	validator *schema.Validator,
	producers map[pipeline.Stage]pipeline.Producer,
	publisher pipeline.Publisher,
	archiver pipeline.Archiver,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		writerCfg: writerCfg,
		store:     store,
		validator: validator,
		producers: producers,
		publisher: publisher,
		archiver:  archiver,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes the full pipeline and returns its report. The report is
// also written as run_report.json in the output directory. A non-nil
// error means the run aborted; the report still carries everything
// collected up to the halt.
func (o *Orchestrator) Run(ctx context.Context, runID string, seedURLs []string) (*RunReport, error) {
	metrics.Init()
	report := &RunReport{RunID: runID, StartTime: o.clock.Now(), Terminal: "complete"}

	var priorOutput string
	for _, stage := range pipeline.Stages {
		result, outcome := o.runStage(ctx, stage, runID, seedURLs, priorOutput)
		report.Stages = append(report.Stages, result)

		if outcome == OutcomeHalt {
			report.Terminal = "aborted"
			report.Reason = result.Error
			break
		}
		priorOutput = stage.OutputFile(o.cfg.OutputDir)
	}

	report.EndTime = o.clock.Now()
	o.finishRun(ctx, report)

	if report.Terminal == "aborted" {
		return report, fmt.Errorf("pipeline aborted: %s", report.Reason)
	}
	return report, nil
}

// runStage walks one stage through the state machine and resolves its
// gate.
func (o *Orchestrator) runStage(ctx context.Context, stage pipeline.Stage, runID string, seedURLs []string, priorOutput string) (StageResult, Outcome) {
	result := StageResult{Stage: stage.String(), Outcome: OutcomeHalt}
	path := stage.OutputFile(o.cfg.OutputDir)

	o.logger.Info("stage pending", zap.Stringer("stage", stage))

	// Pending -> Running: attach writer and dedup store. The store is
	// scoped per stage so a URL recorded by discovery is still new to
	// enrichment. A store or writer that cannot open is pipeline-fatal
	// with no partial run.
	stageStore := dedup.Scoped(o.store, stage.String())
	writer, err := journal.Open(stage, path, stageStore, o.writerCfg, o.logger)
	if err != nil {
		o.logger.Error("stage start failed", zap.Stringer("stage", stage), zap.Error(err))
		result.Error = ReasonStorageUnavailable
		return result, OutcomeHalt
	}

	st := stats.Start(stage, o.clock)
	o.publish(ctx, "stage_started", map[string]any{"run_id": runID, "stage": stage.String()})
	o.logger.Info("stage running", zap.Stringer("stage", stage))

	in := pipeline.ProducerInput{
		InputPath: priorOutput,
		Dedup:     stageStore,
		Writer:    writer,
		Stats:     st,
	}
	if stage == pipeline.StageDiscovery {
		in.Seeds = seedURLs
		in.InputPath = ""
	}

	prodErr := o.producers[stage].Produce(ctx, in)

	// Running -> Gating: finalize stats, close the output on every
	// path, then gate whatever was captured.
	snap := st.Finish()
	result.Stats = snap
	metrics.ObserveStageDuration(stage.String(), snap.DurationSeconds)
	metrics.SetDedupIndexSize(o.store.Count())
	if err := writer.Close(); err != nil {
		o.logger.Warn("close stage output", zap.Stringer("stage", stage), zap.Error(err))
	}

	counts := writer.Counts()
	o.logger.Info("stage finished",
		zap.Stringer("stage", stage),
		zap.Int64("written", counts.Written),
		zap.Int64("duplicates", counts.Duplicates),
		zap.Int64("empty", counts.Empty),
		zap.Int64("malformed", counts.Malformed),
		zap.Float64("duration_s", snap.DurationSeconds),
	)

	corrupted := writer.Tripped() != nil ||
		errors.Is(prodErr, pipeline.ErrSystemicCorruption) ||
		errors.Is(prodErr, pipeline.ErrStageTerminated)

	if corrupted && counts.Written == 0 {
		// Nothing worth gating.
		result.Error = ReasonSystemicCorruption
		return result, OutcomeHalt
	}
	if prodErr != nil && !corrupted {
		o.logger.Error("stage producer failed", zap.Stringer("stage", stage), zap.Error(prodErr))
		result.Error = ReasonProducerFailure
		return result, OutcomeHalt
	}

	o.logger.Info("stage gating", zap.Stringer("stage", stage))
	vr, err := o.validator.ValidateFile(path, schema.For(stage), o.cfg.SampleRate, o.cfg.FailFast)
	if err != nil {
		o.logger.Error("gate validation failed", zap.Stringer("stage", stage), zap.Error(err))
		result.Error = ReasonValidationShortfall
		return result, OutcomeHalt
	}
	result.Report = vr

	outcome := o.resolveGate(stage, vr, corrupted, &result)
	if outcome == OutcomeHalt {
		return result, outcome
	}

	o.archive(ctx, runID, stage, path)
	o.publish(ctx, "stage_completed", map[string]any{
		"run_id":  runID,
		"stage":   stage.String(),
		"outcome": string(outcome),
		"written": counts.Written,
	})
	result.Outcome = outcome
	return result, outcome
}

// resolveGate applies the gate policy to a validation report.
func (o *Orchestrator) resolveGate(stage pipeline.Stage, vr *schema.Report, corrupted bool, result *StageResult) Outcome {
	if vr == nil {
		// Absent output is a legitimate empty crawl, not a failure.
		result.GateSkipped = true
		o.logger.Info("gate skipped, stage output absent", zap.Stringer("stage", stage))
		if corrupted {
			result.Error = ReasonSystemicCorruption
			return OutcomeHalt
		}
		return OutcomeAdvance
	}

	metrics.SetValidationSuccessRate(stage.String(), vr.SuccessRate)

	if corrupted {
		// Partial output was captured before the breaker tripped; its
		// gate verdict decides whether the run continues. An output the
		// gate rejects on top of the corruption is not worth keeping.
		if vr.IsAcceptable {
			o.logger.Warn("stage terminated early, preserved output passed the gate",
				zap.Stringer("stage", stage),
				zap.Float64("success_rate", vr.SuccessRate),
			)
			return OutcomeAdvance
		}
		result.Error = ReasonSystemicCorruption
		return OutcomeHalt
	}
	if vr.IsAcceptable {
		return OutcomeAdvance
	}
	if o.cfg.BlockOnShortfall {
		result.Error = ReasonValidationShortfall
		return OutcomeHalt
	}
	o.logger.Warn("validation shortfall, advancing anyway",
		zap.Stringer("stage", stage),
		zap.Float64("success_rate", vr.SuccessRate),
	)
	return OutcomeWarnAndAdvance
}

func (o *Orchestrator) archive(ctx context.Context, runID string, stage pipeline.Stage, path string) {
	if o.archiver == nil {
		return
	}
	uri, err := o.archiver.Archive(ctx, runID, stage, path)
	if err != nil {
		o.logger.Warn("archive stage output", zap.Stringer("stage", stage), zap.Error(err))
		return
	}
	o.logger.Info("stage output archived", zap.Stringer("stage", stage), zap.String("uri", uri))
}

func (o *Orchestrator) publish(ctx context.Context, event string, payload any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event, payload); err != nil {
		o.logger.Warn("publish pipeline event", zap.String("event", event), zap.Error(err))
	}
}

// finishRun publishes the terminal event and writes run_report.json.
func (o *Orchestrator) finishRun(ctx context.Context, report *RunReport) {
	event := "pipeline_completed"
	if report.Terminal == "aborted" {
		event = "pipeline_aborted"
	}
	o.publish(ctx, event, report)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		o.logger.Error("marshal run report", zap.Error(err))
		return
	}
	path := filepath.Join(o.cfg.OutputDir, "run_report.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		o.logger.Error("write run report", zap.String("path", path), zap.Error(err))
		return
	}

	for _, sr := range report.Stages {
		fields := []zap.Field{
			zap.String("stage", sr.Stage),
			zap.String("outcome", string(sr.Outcome)),
			zap.Int64("inputs", sr.Stats.InputCount),
			zap.Int64("outputs", sr.Stats.OutputCount),
			zap.Int64("errors", sr.Stats.ErrorCount),
		}
		if sr.Report != nil {
			fields = append(fields, zap.Float64("success_rate", sr.Report.SuccessRate))
		}
		o.logger.Info("stage summary", fields...)
	}
	o.logger.Info("pipeline finished",
		zap.String("run_id", report.RunID),
		zap.String("terminal", report.Terminal),
		zap.String("reason", report.Reason),
		zap.String("report", path),
	)
}
