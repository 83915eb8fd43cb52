// Package app builds the service graph shared by the HTTP server and the
// operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/config"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/db"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/handler"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/httpclient"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider/classifier"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider/scraper"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider/summarize"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/provider/youtube"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/repository"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/router"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/store/memstore"
)

// Version is reported by the readiness probe.
const Version = "1.0.0"

var (
	_ service.Store = (*repository.Store)(nil)
	_ service.Store = (*memstore.Store)(nil)
)

type App struct {
	Config *config.Config
	Log    zerolog.Logger
	// Pool is nil when the in-memory store is selected.
	Pool  *pgxpool.Pool
	Store service.Store
	Cache *service.CacheService

	Jobs      *service.JobTracker
	Ingest    *service.IngestService
	Webhook   *service.WebhookService
	Sentiment *service.SentimentService
	Stats     *service.StatsService
	Reaper    *service.JobReaper
}

// New connects the row store and cache and wires every service.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: logger}

	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		a.Store = memstore.New()
	} else {
		if cfg.MigrateOnStart {
			version, dirty, err := db.Migrate(cfg.DatabaseURL, false)
			if err != nil {
				return nil, err
			}
			logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema migrated")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.Pool = pool
		a.Store = repository.NewStore(pool)
	}

	a.Cache = service.NewCacheService(cfg.RedisURL, logger)
	a.Jobs = service.NewJobTracker(a.Store, cfg.Job.PollInterval, cfg.Job.PollAttempts, logger)

	hc := httpclient.New(cfg.HTTPTimeout, logger)
	source := youtube.New(youtube.Config{
		APIKey:     cfg.YouTube.APIKey,
		BaseURL:    cfg.YouTube.BaseURL,
		WebBaseURL: cfg.YouTube.WebBaseURL,
		MaxRetries: cfg.YouTube.MaxRetries,
		BaseDelay:  cfg.YouTube.BaseDelay,
	}, hc, logger)

	a.Ingest = service.NewIngestService(a.Store, source, newScraper(cfg, hc, logger), a.Jobs, a.Cache,
		service.IngestConfig{
			VideoLimit:       cfg.Ingest.VideoLimit,
			CommentVideos:    cfg.Ingest.CommentVideos,
			CommentsPerVideo: cfg.Ingest.CommentsPerVideo,
		}, logger)

	a.Webhook = service.NewWebhookService(a.Store, a.Jobs, a.Cache, cfg.Webhook.Secret, logger).
		WithAuth(cfg.Webhook.Auth)

	primary, fallback := newSummarizers(cfg, logger)
	a.Sentiment = service.NewSentimentService(a.Store, newClassifier(cfg, hc, logger), primary, fallback, a.Cache,
		service.SentimentConfig{
			MaxComments: cfg.Sentiment.MaxComments,
			Workers:     cfg.Sentiment.Workers,
		}, logger)

	a.Stats = service.NewStatsService(a.Store)
	a.Reaper = service.NewJobReaper(a.Store, cfg.Job.ReapInterval, cfg.Job.StaleAfter, logger)
	return a, nil
}

// Handlers builds the HTTP handlers over the wired services.
func (a *App) Handlers() *router.Handlers {
	var pinger handler.Pinger
	if a.Pool != nil {
		pinger = a.Pool
	}
	return &router.Handlers{
		Health:   handler.NewHealthHandler(pinger, a.Cache.Client(), Version),
		Channel:  handler.NewChannelHandler(a.Ingest),
		Video:    handler.NewVideoHandler(a.Ingest),
		Scrape:   handler.NewScrapeHandler(a.Ingest),
		Webhook:  handler.NewWebhookHandler(a.Webhook),
		Job:      handler.NewJobHandler(a.Jobs),
		Analysis: handler.NewAnalysisHandler(a.Sentiment),
		Stats:    handler.NewStatsHandler(a.Stats),
	}
}

func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("closing cache")
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// The constructors below return nil interfaces, not typed nil pointers, for
// providers that are not configured.

func newScraper(cfg *config.Config, hc *httpclient.Client, logger zerolog.Logger) service.ScrapeDispatcher {
	if cfg.Scraper.Token == "" || cfg.Webhook.URL == "" {
		logger.Info().Msg("scrape provider not configured, async scrapes disabled")
		return nil
	}
	return scraper.New(scraper.Config{
		BaseURL:        cfg.Scraper.BaseURL,
		Token:          cfg.Scraper.Token,
		ChannelDataset: cfg.Scraper.ChannelDataset,
		VideoDataset:   cfg.Scraper.VideoDataset,
		WebhookURL:     cfg.Webhook.URL,
		WebhookAuth:    cfg.Webhook.Auth,
		MaxRetries:     cfg.Scraper.MaxRetries,
		BaseDelay:      cfg.Scraper.BaseDelay,
	}, hc)
}

func newClassifier(cfg *config.Config, hc *httpclient.Client, logger zerolog.Logger) service.Classifier {
	if cfg.Sentiment.URL == "" {
		logger.Info().Msg("sentiment classifier not configured, comments score neutral")
		return nil
	}
	return classifier.New(classifier.Config{
		URL:        cfg.Sentiment.URL,
		Token:      cfg.Sentiment.Token,
		MaxRetries: cfg.Sentiment.MaxRetries,
		BaseDelay:  cfg.Sentiment.BaseDelay,
	}, hc)
}

func newSummarizers(cfg *config.Config, logger zerolog.Logger) (service.Summarizer, service.Summarizer) {
	if cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		logger.Info().Msg("summarizer not configured, summaries use the placeholder")
		return nil, nil
	}
	base := summarize.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}
	primary := summarize.New(base, logger)
	if cfg.LLM.FallbackModel == "" {
		return primary, nil
	}
	fb := base
	fb.Model = cfg.LLM.FallbackModel
	fb.MaxTokens = base.MaxTokens / 2
	return primary, summarize.New(fb, logger)
}
