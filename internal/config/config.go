// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/archive/gcs"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/archive/local"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/badger"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/dedup/postgres"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/journal"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/publisher/pubsub"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/discovery"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/enrichment"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/stages/validation"
)

// Config captures all pipeline configuration loaded via Viper.
type Config struct {
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Dedup      DedupConfig       `mapstructure:"dedup"`
	Writer     journal.Config    `mapstructure:"writer"`
	Gate       GateConfig        `mapstructure:"gate"`
	Discovery  discovery.Config  `mapstructure:"discovery"`
	Validation validation.Config `mapstructure:"validation"`
	Enrichment enrichment.Config `mapstructure:"enrichment"`
	Publisher  PublisherConfig   `mapstructure:"publisher"`
	Archive    ArchiveConfig     `mapstructure:"archive"`
	Server     ServerConfig      `mapstructure:"server"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// PipelineConfig holds run-level settings.
type PipelineConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	SeedFile  string `mapstructure:"seed_file"`
	// RunID overrides the generated run identifier. Empty means
	// generate one per run.
	RunID string `mapstructure:"run_id"`
}

// DedupConfig selects and configures the dedup store backend.
type DedupConfig struct {
	Backend  string          `mapstructure:"backend"`
	Path     string          `mapstructure:"path"`
	Badger   badger.Config   `mapstructure:"badger"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// GateConfig holds the per-stage quality gate settings.
type GateConfig struct {
	SampleRate       float64 `mapstructure:"sample_rate"`
	MinSuccessRate   float64 `mapstructure:"min_success_rate"`
	BlockOnShortfall bool    `mapstructure:"block_on_shortfall"`
	FailFast         bool    `mapstructure:"fail_fast"`
}

// PublisherConfig selects the completion-event publisher.
type PublisherConfig struct {
	Backend string        `mapstructure:"backend"`
	PubSub  pubsub.Config `mapstructure:"pubsub"`
}

// ArchiveConfig selects the stage-output archiver.
type ArchiveConfig struct {
	Backend string       `mapstructure:"backend"`
	Local   local.Config `mapstructure:"local"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load reads configuration from the given file (optional) and the
// environment, applies defaults, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.output_dir", "data")
	v.SetDefault("dedup.backend", "file")
	v.SetDefault("dedup.path", "data/dedup.jsonl")
	v.SetDefault("dedup.badger.path", "data/dedup.badger")
	v.SetDefault("dedup.badger.sync_writes", true)
	v.SetDefault("dedup.postgres.table", "processed_keys")
	v.SetDefault("writer.fsync", true)
	v.SetDefault("writer.max_empty_records", 50)
	v.SetDefault("writer.max_empty_ratio", 0.02)
	v.SetDefault("gate.sample_rate", 0.1)
	v.SetDefault("gate.min_success_rate", 0.95)
	v.SetDefault("gate.block_on_shortfall", false)
	v.SetDefault("gate.fail_fast", false)
	v.SetDefault("discovery.max_depth", 3)
	v.SetDefault("discovery.parallelism", 4)
	v.SetDefault("discovery.user_agent", "pipeline-bot/0.1")
	v.SetDefault("discovery.delay", time.Second)
	v.SetDefault("validation.concurrency", 8)
	v.SetDefault("validation.timeout", 15*time.Second)
	v.SetDefault("validation.user_agent", "pipeline-bot/0.1")
	v.SetDefault("validation.max_body_bytes", 5*1024*1024)
	v.SetDefault("enrichment.concurrency", 4)
	v.SetDefault("enrichment.timeout", 20*time.Second)
	v.SetDefault("enrichment.user_agent", "pipeline-bot/0.1")
	v.SetDefault("enrichment.max_keywords", 15)
	v.SetDefault("enrichment.max_entities", 25)
	v.SetDefault("publisher.backend", "memory")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate checks cross-field constraints not expressible as defaults.
func (c Config) Validate() error {
	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir must be set")
	}
	switch c.Dedup.Backend {
	case "memory", "file", "badger", "postgres":
	default:
		return fmt.Errorf("dedup.backend %q not one of memory, file, badger, postgres", c.Dedup.Backend)
	}
	if c.Dedup.Backend == "file" && c.Dedup.Path == "" {
		return fmt.Errorf("dedup.path must be set for the file backend")
	}
	if c.Dedup.Backend == "postgres" && c.Dedup.Postgres.DSN == "" {
		return fmt.Errorf("dedup.postgres.dsn must be set for the postgres backend")
	}
	if c.Writer.MaxEmptyRecords <= 0 {
		return fmt.Errorf("writer.max_empty_records must be positive")
	}
	if c.Writer.MaxEmptyRatio <= 0 || c.Writer.MaxEmptyRatio > 1 {
		return fmt.Errorf("writer.max_empty_ratio must be in (0, 1]")
	}
	if c.Gate.SampleRate <= 0 || c.Gate.SampleRate > 1 {
		return fmt.Errorf("gate.sample_rate must be in (0, 1]")
	}
	if c.Gate.MinSuccessRate < 0 || c.Gate.MinSuccessRate > 1 {
		return fmt.Errorf("gate.min_success_rate must be in [0, 1]")
	}
	switch c.Publisher.Backend {
	case "memory", "pubsub", "none":
	default:
		return fmt.Errorf("publisher.backend %q not one of memory, pubsub, none", c.Publisher.Backend)
	}
	if c.Publisher.Backend == "pubsub" && (c.Publisher.PubSub.ProjectID == "" || c.Publisher.PubSub.TopicID == "") {
		return fmt.Errorf("publisher.pubsub requires project_id and topic_id")
	}
	switch c.Archive.Backend {
	case "none", "local", "gcs":
	default:
		return fmt.Errorf("archive.backend %q not one of none, local, gcs", c.Archive.Backend)
	}
	if c.Archive.Backend == "gcs" && c.Archive.GCS.Bucket == "" {
		return fmt.Errorf("archive.gcs.bucket must be set for the gcs backend")
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
