// Package local implements a local filesystem stage-output archiver.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Config captures the parameters for the local archiver.
type Config struct {
	// BaseDir is the root directory where run archives are stored.
	BaseDir string `mapstructure:"base_dir"`
}

// Archiver copies stage output files under runs/<run_id>/ on the local
// filesystem.
type Archiver struct {
	baseDir string
}

// New creates a local filesystem archiver, verifying the base directory
// exists and is writable.
func New(cfg Config) (*Archiver, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Archiver{baseDir: cfg.BaseDir}, nil
}

// Archive copies the stage output to runs/<run_id>/<stage>.jsonl and
// returns a file:// URI.
func (a *Archiver) Archive(_ context.Context, runID string, stage pipeline.Stage, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open stage output: %w", err)
	}
	defer src.Close()

	destDir := filepath.Join(a.baseDir, "runs", filepath.Base(runID))
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	destPath := filepath.Join(destDir, stage.String()+".jsonl")

	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		closeErr := dest.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy archive: %w (close: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy archive: %w", err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	return fmt.Sprintf("file://%s", destPath), nil
}
