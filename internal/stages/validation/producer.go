// Package validation implements the stage 2 producer: it fetches every
// discovered URL and records whether the URL is live, typed, and worth
// enriching. The HTTP client is injected so tests can construct
// responses instead of patching live transports.
package validation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/hash/sha256"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/ratelimit"
)

// Config governs fetch concurrency and limits.
type Config struct {
	Concurrency  int              `mapstructure:"concurrency"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	UserAgent    string           `mapstructure:"user_agent"`
	MaxBodyBytes int64            `mapstructure:"max_body_bytes"`
	RateLimit    ratelimit.Config `mapstructure:"rate_limit"`
}

// Producer checks each discovered URL over HTTP.
type Producer struct {
	cfg     Config
	client  *http.Client
	hasher  *sha256.Hasher
	limiter *ratelimit.Limiter
	clock   pipeline.Clock
	logger  *zap.Logger
}

// New creates the validation producer. A nil client gets a default one
// honoring cfg.Timeout.
func New(cfg Config, client *http.Client, clock pipeline.Clock, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 * 1024 * 1024
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Producer{
		cfg:     cfg,
		client:  client,
		hasher:  sha256.New(),
		limiter: ratelimit.New(cfg.RateLimit),
		clock:   clock,
		logger:  logger,
	}
}

// ProducerStage identifies this producer's stage.
func (p *Producer) ProducerStage() pipeline.Stage { return pipeline.StageValidation }

// Produce reads the discovery output and fans the URL checks out over a
// bounded errgroup. Fetch failures produce a record with the error
// captured, not a stage failure; only a writer escalation stops the
// group.
func (p *Producer) Produce(ctx context.Context, in pipeline.ProducerInput) error {
	f, err := os.Open(in.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Info("no discovery output to validate", zap.String("path", in.InputPath))
			return nil
		}
		return fmt.Errorf("open discovery output: %w", err)
	}
	defer f.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		rec, err := pipeline.DecodeRecord(pipeline.StageDiscovery, line)
		if err != nil {
			in.Stats.RecordError()
			continue
		}
		disc, ok := rec.(pipeline.DiscoveryRecord)
		if !ok {
			continue
		}
		url, err := pipeline.NormalizeURL(disc.DiscoveredURL)
		if err != nil {
			in.Stats.RecordError()
			continue
		}

		urlHash, err := p.hasher.Hash([]byte(url))
		if err != nil {
			in.Stats.RecordError()
			continue
		}
		// Already validated on a previous run; skip the fetch, the
		// writer would drop the record anyway.
		if in.Dedup.Seen(urlHash) {
			continue
		}

		g.Go(func() error {
			if err := p.limiter.Wait(gctx, url); err != nil {
				return err
			}
			in.Stats.RecordInput()
			vr := p.check(gctx, url, urlHash)
			if err := in.Writer.Write(vr); err != nil {
				in.Stats.RecordError()
				return err
			}
			in.Stats.RecordOutput()
			return nil
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan discovery output: %w", err)
	}

	return g.Wait()
}

// check fetches one URL and turns the outcome into a record.
func (p *Producer) check(ctx context.Context, url, urlHash string) pipeline.ValidationRecord {
	rec := pipeline.ValidationRecord{
		URL:         url,
		URLHash:     urlHash,
		ValidatedAt: p.clock.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		rec.ErrorMessage = err.Error()
		return rec
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	start := p.clock.Now()
	resp, err := p.client.Do(req)
	rec.ResponseTime = p.clock.Now().Sub(start).Seconds()
	if err != nil {
		rec.ErrorMessage = err.Error()
		return rec
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	rec.StatusCode = resp.StatusCode
	rec.ContentType = strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	rec.ContentLength = n
	if resp.ContentLength > n {
		rec.ContentLength = resp.ContentLength
	}

	rec.IsValid = resp.StatusCode >= 200 && resp.StatusCode < 400 && rec.ContentLength > 0
	return rec
}
