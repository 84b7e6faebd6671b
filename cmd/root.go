// Package cmd defines and implements the CLI commands for the pipeline
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/config"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Crawl pipeline with per-stage integrity gating",
		Long: `pipeline runs a three stage crawl (discovery, validation,
enrichment) where every stage writes an append-only JSONL output that
is deduplicated, corruption-checked, and schema-gated before the next
stage may start.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// loadRuntime loads configuration and builds the logger shared by all
// subcommands.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
