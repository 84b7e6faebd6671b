// Package enrichment implements the stage 3 producer: it fetches each
// validated URL and extracts content features with goquery. The
// linguistic heuristics here are collaborator internals; garbage in a
// single page only costs that page.
package enrichment

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
	"github.com/BenjaminSRussell/Scrapy-sub002/internal/ratelimit"
)

// Config governs fetch concurrency and extraction limits.
type Config struct {
	Concurrency int              `mapstructure:"concurrency"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	UserAgent   string           `mapstructure:"user_agent"`
	MaxKeywords int              `mapstructure:"max_keywords"`
	MaxEntities int              `mapstructure:"max_entities"`
	RateLimit   ratelimit.Config `mapstructure:"rate_limit"`
}

// Producer extracts content from validated URLs.
type Producer struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Limiter
	clock   pipeline.Clock
	logger  *zap.Logger
}

// New creates the enrichment producer. A nil client gets a default one
// honoring cfg.Timeout.
func New(cfg Config, client *http.Client, clock pipeline.Clock, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = 15
	}
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = 25
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Producer{
		cfg:     cfg,
		client:  client,
		limiter: ratelimit.New(cfg.RateLimit),
		clock:   clock,
		logger:  logger,
	}
}

// ProducerStage identifies this producer's stage.
func (p *Producer) ProducerStage() pipeline.Stage { return pipeline.StageEnrichment }

// Produce reads the validation output, takes the records marked valid,
// and fans the page extractions out over a bounded errgroup.
func (p *Producer) Produce(ctx context.Context, in pipeline.ProducerInput) error {
	f, err := os.Open(in.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Info("no validation output to enrich", zap.String("path", in.InputPath))
			return nil
		}
		return fmt.Errorf("open validation output: %w", err)
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
		rec, err := pipeline.DecodeRecord(pipeline.StageValidation, line)
		if err != nil {
			in.Stats.RecordError()
			continue
		}
		vr, ok := rec.(pipeline.ValidationRecord)
		if !ok || !vr.IsValid {
			continue
		}

		g.Go(func() error {
			if err := p.limiter.Wait(gctx, vr.URL); err != nil {
				return err
			}
			in.Stats.RecordInput()
			er, err := p.enrich(gctx, vr)
			if err != nil {
				in.Stats.RecordError()
				p.logger.Warn("enrich failed", zap.String("url", vr.URL), zap.Error(err))
				return nil
			}
			if err := in.Writer.Write(er); err != nil {
				in.Stats.RecordError()
				return err
			}
			in.Stats.RecordOutput()
			return nil
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan validation output: %w", err)
	}

	return g.Wait()
}

// enrich fetches one page and extracts its features.
func (p *Producer) enrich(ctx context.Context, vr pipeline.ValidationRecord) (pipeline.EnrichmentRecord, error) {
	rec := pipeline.EnrichmentRecord{
		URL:         vr.URL,
		StatusCode:  vr.StatusCode,
		ContentType: vr.ContentType,
		EnrichedAt:  p.clock.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vr.URL, nil)
	if err != nil {
		return rec, fmt.Errorf("build request: %w", err)
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return rec, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	rec.StatusCode = resp.StatusCode

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return rec, fmt.Errorf("parse page: %w", err)
	}

	rec.Title = pageTitle(doc)
	rec.TextContent = pageText(doc)
	rec.WordCount = wordCount(rec.TextContent)
	rec.Entities = extractEntities(rec.TextContent, p.cfg.MaxEntities)
	rec.Keywords = rankKeywords(rec.TextContent, p.cfg.MaxKeywords)
	rec.ContentTags = contentTags(vr.URL, rec.Keywords)
	rec.HasPDFLinks = hasLinkSuffix(doc, ".pdf")
	rec.HasAudioLinks = hasLinkSuffix(doc, ".mp3", ".wav", ".m4a", ".ogg")
	return rec, nil
}
