// Package gcs provides a stage-output archiver backed by Google Cloud
// Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Config captures the parameters required to archive to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Archiver uploads stage output files to a configured GCS bucket.
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed archiver, checking bucket access up front.
func New(ctx context.Context, client *storage.Client, cfg Config) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	return &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Archive uploads the stage output as
// <prefix>/runs/<run_id>/<stage>.jsonl and returns a gs:// URI.
func (a *Archiver) Archive(ctx context.Context, runID string, stage pipeline.Stage, filePath string) (string, error) {
	src, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open stage output: %w", err)
	}
	defer src.Close()

	object := path.Join(a.prefix, "runs", runID, stage.String()+".jsonl")
	writer := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/jsonl"

	if _, err := io.Copy(writer, src); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}
