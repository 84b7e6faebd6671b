package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/merge"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Merge per-stage outputs into one record per URL",
		Long: `Joins the discovery, validation, and enrichment outputs on URL
and writes a single merged JSONL file. Stages that have not run leave
their section empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			records, err := merge.Load(cfg.Pipeline.OutputDir)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(cfg.Pipeline.OutputDir, "merged.jsonl")
			}
			if err := merge.WriteFile(out, records); err != nil {
				return err
			}
			logger.Info("merged records exported",
				zap.String("path", out),
				zap.Int("records", len(records)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (default <output_dir>/merged.jsonl)")
	return cmd
}
