package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/pkg/config"
	"github.com/xhad/agentic/pkg/fetch"
	"github.com/xhad/agentic/pkg/llm"
	"github.com/xhad/agentic/pkg/processor"
	"github.com/xhad/agentic/pkg/scraper"
	"github.com/xhad/agentic/pkg/store"
	"github.com/xhad/agentic/pkg/telemetry"
)

// env carries what every command shares. Clients are created on first use so
// that commands only connect to the services they need.
type env struct {
	cfg     *config.Config
	invalid config.ValidationErrors
	logger  *slog.Logger
	metrics *telemetry.Metrics

	models   *llm.Models
	embedder *llm.Embedder
	cache    *store.EmbeddingCache
	closers  []func() error
}

func (e *env) setup(c *cli.Context) error {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(e.logger)

	if p := c.String("provider"); c.IsSet("provider") && p != "" {
		if err := os.Setenv("AGENTIC_PROVIDER", p); err != nil {
			return err
		}
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	e.cfg = cfg
	e.invalid = cfg.Validate()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	e.metrics = metrics
	telemetry.Install(e.logger, metrics)
	return nil
}

func (e *env) teardown(*cli.Context) error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func (e *env) validate() error {
	if len(e.invalid) > 0 {
		return e.invalid
	}
	return nil
}

func (e *env) chatModels() (*llm.Models, error) {
	if e.models != nil {
		return e.models, nil
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	models, err := llm.NewModels(e.cfg.LLM)
	if err != nil {
		return nil, err
	}
	e.models = models
	return models, nil
}

func (e *env) embeddingCache(ctx context.Context) (*store.EmbeddingCache, error) {
	if e.cache != nil || e.cfg.Cache.RedisURL == "" {
		return e.cache, nil
	}
	cache, err := store.DialEmbeddingCache(ctx, e.cfg.Cache.RedisURL, e.cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	e.closers = append(e.closers, cache.Close)
	return cache, nil
}

// newEmbedder returns the configured embedder, backed by the Redis cache when
// one is configured.
func (e *env) newEmbedder(ctx context.Context) (*llm.Embedder, error) {
	if e.embedder != nil {
		return e.embedder, nil
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	client, err := llm.NewEmbeddingClient(e.cfg.LLM)
	if err != nil {
		return nil, err
	}

	var cache llm.EmbeddingCache
	if c, err := e.embeddingCache(ctx); err != nil {
		e.logger.Warn("embedding cache unavailable, continuing without it", slog.String("error", err.Error()))
	} else if c != nil {
		cache = c
	}

	e.embedder = llm.NewEmbedder(client, e.cfg.LLM.EmbeddingModel, cache)
	return e.embedder, nil
}

func (e *env) openIndex(ctx context.Context, emb store.QueryEmbedder) (store.Index, error) {
	index, err := store.Open(ctx, e.cfg.Store, emb)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", e.cfg.Store.Backend, err)
	}
	e.closers = append(e.closers, index.Close)
	return index, nil
}

func (e *env) newScraper(baseURL string, onProgress func(string)) (*scraper.Scraper, error) {
	sc := e.cfg.Scraper
	return scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:           baseURL,
		MaxDepth:          sc.MaxDepth,
		MaxPages:          sc.MaxPages,
		RateLimit:         sc.RateLimit,
		UserAgent:         sc.UserAgent,
		IgnorePatterns:    sc.IgnorePatterns,
		AllowedExtensions: sc.AllowedExtensions,
		OnProgress:        onProgress,
		Logger:            e.logger,
	})
}

func (e *env) newProcessor() *processor.Processor {
	pc := e.cfg.Processor
	return processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:            pc.ChunkSize,
		ChunkOverlap:         pc.ChunkOverlap,
		MinChunkLength:       pc.MinChunkLength,
		RemoveStopwords:      pc.RemoveStopwords,
		BreakpointPercentile: pc.BreakpointPercentile,
	})
}

func (e *env) newDownloader() *fetch.Downloader {
	return fetch.NewDownloader(e.cfg.Data.CacheDir)
}
