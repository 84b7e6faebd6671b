package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/schema"
)

func newValidateCmd() *cobra.Command {
	var (
		sampleRate float64
		failFast   bool
	)
	cmd := &cobra.Command{
		Use:   "validate <stage>",
		Short: "Run the schema gate against an existing stage output file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			stage, err := stageByName(args[0])
			if err != nil {
				return err
			}

			validator := schema.New(schema.Config{MinSuccessRate: cfg.Gate.MinSuccessRate}, logger)
			report, err := validator.ValidateFile(stage.OutputFile(cfg.Pipeline.OutputDir), schema.For(stage), sampleRate, failFast)
			if err != nil {
				return err
			}
			if report == nil {
				return fmt.Errorf("no output file for stage %s", stage)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("print report: %w", err)
			}
			if !report.IsAcceptable {
				return fmt.Errorf("stage %s below success-rate floor: %.4f < %.4f",
					stage, report.SuccessRate, cfg.Gate.MinSuccessRate)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&sampleRate, "sample-rate", 1.0, "fraction of records to check")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first record violation")
	return cmd
}

func stageByName(name string) (pipeline.Stage, error) {
	for _, stage := range pipeline.Stages {
		if stage.String() == name {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (want discovery, validation, or enrichment)", name)
}
