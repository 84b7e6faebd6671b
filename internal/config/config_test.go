package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.OutputDir != "data" {
		t.Errorf("OutputDir = %q", cfg.Pipeline.OutputDir)
	}
	if cfg.Dedup.Backend != "file" {
		t.Errorf("Dedup.Backend = %q", cfg.Dedup.Backend)
	}
	if !cfg.Writer.Fsync || cfg.Writer.MaxEmptyRecords != 50 || cfg.Writer.MaxEmptyRatio != 0.02 {
		t.Errorf("Writer = %+v", cfg.Writer)
	}
	if cfg.Gate.SampleRate != 0.1 || cfg.Gate.MinSuccessRate != 0.95 {
		t.Errorf("Gate = %+v", cfg.Gate)
	}
	if cfg.Gate.BlockOnShortfall || cfg.Gate.FailFast {
		t.Errorf("Gate flags = %+v", cfg.Gate)
	}
	if cfg.Validation.Timeout != 15*time.Second {
		t.Errorf("Validation.Timeout = %v", cfg.Validation.Timeout)
	}
	if cfg.Server.Enabled {
		t.Error("Server.Enabled = true")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
pipeline:
  output_dir: /var/lib/pipeline
  seed_file: seeds.txt
dedup:
  backend: badger
  badger:
    path: /var/lib/pipeline/dedup
    sync_writes: false
writer:
  fsync: false
  max_empty_records: 10
  max_empty_ratio: 0.5
gate:
  sample_rate: 1.0
  min_success_rate: 0.8
  block_on_shortfall: true
discovery:
  allowed_domains: ["uconn.edu"]
  max_depth: 5
  parallelism: 8
  delay: 250ms
validation:
  concurrency: 16
  timeout: 30s
enrichment:
  concurrency: 2
publisher:
  backend: pubsub
  pubsub:
    project_id: proj
    topic_id: pipeline-events
archive:
  backend: local
  local:
    base_dir: /var/lib/pipeline/archive
server:
  enabled: true
  port: 9090
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.OutputDir != "/var/lib/pipeline" || cfg.Pipeline.SeedFile != "seeds.txt" {
		t.Errorf("Pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Dedup.Backend != "badger" || cfg.Dedup.Badger.Path != "/var/lib/pipeline/dedup" || cfg.Dedup.Badger.SyncWrites {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	if cfg.Writer.Fsync || cfg.Writer.MaxEmptyRecords != 10 || cfg.Writer.MaxEmptyRatio != 0.5 {
		t.Errorf("Writer = %+v", cfg.Writer)
	}
	if cfg.Gate.SampleRate != 1.0 || !cfg.Gate.BlockOnShortfall {
		t.Errorf("Gate = %+v", cfg.Gate)
	}
	if len(cfg.Discovery.AllowedDomains) != 1 || cfg.Discovery.AllowedDomains[0] != "uconn.edu" {
		t.Errorf("Discovery.AllowedDomains = %v", cfg.Discovery.AllowedDomains)
	}
	if cfg.Discovery.Delay != 250*time.Millisecond {
		t.Errorf("Discovery.Delay = %v", cfg.Discovery.Delay)
	}
	if cfg.Validation.Concurrency != 16 || cfg.Validation.Timeout != 30*time.Second {
		t.Errorf("Validation = %+v", cfg.Validation)
	}
	if cfg.Publisher.Backend != "pubsub" || cfg.Publisher.PubSub.ProjectID != "proj" {
		t.Errorf("Publisher = %+v", cfg.Publisher)
	}
	if cfg.Archive.Backend != "local" || cfg.Archive.Local.BaseDir != "/var/lib/pipeline/archive" {
		t.Errorf("Archive = %+v", cfg.Archive)
	}
	if !cfg.Server.Enabled || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if !cfg.Logging.Development {
		t.Error("Logging.Development = false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_DEDUP_BACKEND", "memory")
	t.Setenv("PIPELINE_GATE_SAMPLE_RATE", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dedup.Backend != "memory" {
		t.Errorf("Dedup.Backend = %q, want env override", cfg.Dedup.Backend)
	}
	if cfg.Gate.SampleRate != 0.5 {
		t.Errorf("Gate.SampleRate = %v", cfg.Gate.SampleRate)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown dedup backend", "dedup:\n  backend: redis\n", "dedup.backend"},
		{"postgres without dsn", "dedup:\n  backend: postgres\n", "dedup.postgres.dsn"},
		{"sample rate over one", "gate:\n  sample_rate: 1.5\n", "gate.sample_rate"},
		{"zero empty threshold", "writer:\n  max_empty_records: 0\n", "writer.max_empty_records"},
		{"gcs without bucket", "archive:\n  backend: gcs\n", "archive.gcs.bucket"},
		{"pubsub without topic", "publisher:\n  backend: pubsub\n", "publisher.pubsub"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
