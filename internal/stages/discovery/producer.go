// Package discovery implements the stage 1 producer: a Colly crawler
// that walks the seed list's domains and emits a DiscoveryRecord for
// every URL it encounters. The crawl internals are a collaborator; the
// dedup and durability guarantees live in the writer it is handed.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/Scrapy-sub002/internal/pipeline"
)

// Config governs crawl breadth and politeness.
type Config struct {
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	MaxDepth       int           `mapstructure:"max_depth"`
	UserAgent      string        `mapstructure:"user_agent"`
	Parallelism    int           `mapstructure:"parallelism"`
	Delay          time.Duration `mapstructure:"delay"`
}

// Producer crawls from the seed list.
type Producer struct {
	cfg    Config
	clock  pipeline.Clock
	logger *zap.Logger
}

// New creates the discovery producer.
func New(cfg Config, clock pipeline.Clock, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	return &Producer{cfg: cfg, clock: clock, logger: logger}
}

// ProducerStage identifies this producer's stage.
func (p *Producer) ProducerStage() pipeline.Stage { return pipeline.StageDiscovery }

// Produce visits every seed and follows links within the allowed
// domains, writing one record per URL seen. A tripped writer stops
// further visits; in-flight responses drain against its rejection.
func (p *Producer) Produce(ctx context.Context, in pipeline.ProducerInput) error {
	collector := colly.NewCollector(
		colly.AllowedDomains(p.cfg.AllowedDomains...),
		colly.MaxDepth(p.cfg.MaxDepth),
		colly.UserAgent(p.cfg.UserAgent),
		colly.Async(true),
	)
	collector.AllowURLRevisit = false

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: p.cfg.Parallelism,
		Delay:       p.cfg.Delay,
	}); err != nil {
		return fmt.Errorf("set collector limits: %w", err)
	}

	var mu sync.Mutex
	var stageErr error

	// emit pushes one discovered URL through the dedup+write path and
	// reports whether the crawl may continue.
	emit := func(sourceURL, foundURL string, depth int) bool {
		in.Stats.RecordInput()
		rec := pipeline.DiscoveryRecord{
			SourceURL:      sourceURL,
			DiscoveredURL:  foundURL,
			FirstSeen:      p.clock.Now().UTC(),
			DiscoveryDepth: depth,
		}
		if err := in.Writer.Write(rec); err != nil {
			in.Stats.RecordError()
			mu.Lock()
			if stageErr == nil {
				stageErr = err
			}
			mu.Unlock()
			return false
		}
		in.Stats.RecordOutput()
		return true
	}

	halted := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stageErr != nil
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || halted() {
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if !emit(e.Request.URL.String(), link, e.Request.Depth) {
			return
		}
		var alreadyVisited *colly.AlreadyVisitedError
		if err := e.Request.Visit(link); err != nil &&
			!errors.As(err, &alreadyVisited) &&
			!errors.Is(err, colly.ErrForbiddenDomain) &&
			!errors.Is(err, colly.ErrMaxDepth) {
			p.logger.Debug("skip link", zap.String("url", link), zap.Error(err))
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		in.Stats.RecordError()
		p.logger.Warn("fetch failed",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status", r.StatusCode),
			zap.Error(err),
		)
	})

	for _, seed := range in.Seeds {
		if !emit(seed, seed, 0) {
			break
		}
		if err := collector.Visit(seed); err != nil {
			in.Stats.RecordError()
			p.logger.Error("visit seed", zap.String("url", seed), zap.Error(err))
		}
	}
	collector.Wait()

	mu.Lock()
	defer mu.Unlock()
	if stageErr != nil {
		return stageErr
	}
	return ctx.Err()
}
