package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/api"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/archive/gcs"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/archive/local"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/clock/system"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/config"
	badgerstore "github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/badger"
	filestore "github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/file"
	memorystore "github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/memory"
	postgresstore "github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/postgres"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/id/uuid"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/orchestrator"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
	memorypub "github.com/BenjaminSRussell/Scrapy-sub002/internal/publisher/memory"
	pubsubpub "github.com/BenjaminSRussell/Scrapy-sub002/internal/publisher/pubsub"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/schema"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/seeds"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/discovery"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/enrichment"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/validation"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [seed-url ...]",
		Short: "Run the full pipeline",
		Long: `Runs discovery, validation, and enrichment in order, gating each
stage transition. Seeds come from positional arguments, or from
pipeline.seed_file when none are given.`,
		RunE: runPipelineCommand,
	}
}

func runPipelineCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Pipeline.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	seedURLs := args
	if len(seedURLs) == 0 && cfg.Pipeline.SeedFile != "" {
		seedURLs, err = seeds.Load(cfg.Pipeline.SeedFile)
		if err != nil {
			return err
		}
	}
	if len(seedURLs) == 0 {
		return errors.New("no seed URLs: pass them as arguments or set pipeline.seed_file")
	}

	store, err := openDedupStore(ctx, cfg.Dedup, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close dedup store", zap.Error(cerr))
		}
	}()

	publisher, closePub, err := buildPublisher(ctx, cfg.Publisher, logger)
	if err != nil {
		return err
	}
	defer closePub()

	archiver, err := buildArchiver(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	clk := system.New()
	producers := map[pipeline.Stage]pipeline.Producer{
		pipeline.StageDiscovery:  discovery.New(cfg.Discovery, clk, logger),
		pipeline.StageValidation: validation.New(cfg.Validation, nil, clk, logger),
		pipeline.StageEnrichment: enrichment.New(cfg.Enrichment, nil, clk, logger),
	}
	validator := schema.New(schema.Config{MinSuccessRate: cfg.Gate.MinSuccessRate}, logger)

	orch := orchestrator.New(
		orchestrator.Config{
			OutputDir:        cfg.Pipeline.OutputDir,
			SampleRate:       cfg.Gate.SampleRate,
			BlockOnShortfall: cfg.Gate.BlockOnShortfall,
			FailFast:         cfg.Gate.FailFast,
		},
		cfg.Writer, store, validator, producers, publisher, archiver, clk, logger,
	)

	reports := api.NewReportStore()
	if cfg.Server.Enabled {
		startStatusServer(ctx, cfg.Server.Port, reports, logger)
	}

	runID := cfg.Pipeline.RunID
	if runID == "" {
		runID, err = uuid.New().NewID()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
	}

	report, runErr := orch.Run(ctx, runID, seedURLs)
	if report != nil {
		reports.Set(*report)
	}
	return runErr
}

func openDedupStore(ctx context.Context, cfg config.DedupConfig, logger *zap.Logger) (pipeline.DedupStore, error) {
	switch cfg.Backend {
	case "memory":
		return memorystore.New(), nil
	case "file":
		return filestore.Open(cfg.Path, logger)
	case "badger":
		return badgerstore.Open(cfg.Badger, logger)
	case "postgres":
		return postgresstore.Open(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.PublisherConfig, logger *zap.Logger) (pipeline.Publisher, func(), error) {
	switch cfg.Backend {
	case "none":
		return nil, func() {}, nil
	case "memory":
		return memorypub.New(), func() {}, nil
	case "pubsub":
		pub, err := pubsubpub.New(ctx, cfg.PubSub, logger)
		if err != nil {
			return nil, nil, err
		}
		return pub, func() {
			if cerr := pub.Close(); cerr != nil {
				logger.Warn("close publisher", zap.Error(cerr))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown publisher backend %q", cfg.Backend)
	}
}

func buildArchiver(ctx context.Context, cfg config.ArchiveConfig) (pipeline.Archiver, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "local":
		return local.New(cfg.Local)
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		return gcs.New(ctx, client, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

func startStatusServer(ctx context.Context, port int, reports *api.ReportStore, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(reports, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
