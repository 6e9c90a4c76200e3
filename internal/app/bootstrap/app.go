// Package bootstrap assembles the Scout services from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scoutlabs/pinecone-scout/internal/api/router"
	"github.com/scoutlabs/pinecone-scout/internal/catalog"
	appconfig "github.com/scoutlabs/pinecone-scout/internal/config"
	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/feedback"
	"github.com/scoutlabs/pinecone-scout/internal/http/handlers"
	httpmiddleware "github.com/scoutlabs/pinecone-scout/internal/http/middleware"
	"github.com/scoutlabs/pinecone-scout/internal/llm"
	"github.com/scoutlabs/pinecone-scout/internal/observability/metrics"
	"github.com/scoutlabs/pinecone-scout/internal/profile"
	"github.com/scoutlabs/pinecone-scout/internal/recommend"
	"github.com/scoutlabs/pinecone-scout/internal/suggest"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// App holds the wired services. Close releases pools and clients.
type App struct {
	Handler     http.Handler
	Recommender *recommend.Engine
	Suggester   *suggest.Service
	LLM         llm.Client
	Profiles    *profile.Manager
	Importer    *catalog.Importer
	Source      *catalog.Source
	FeedbackLog feedback.Repository
	Metrics     *metrics.ScoutMetrics

	closers []func() error
}

// Build wires every component from cfg. awsCfg backs the Bedrock fallback
// and s3:// catalog sources.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewScoutMetrics(registry)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	api := NewOpenAIAPI(cfg)
	embedder := BuildEmbedder(cfg, embedding.NewOpenAIEmbedder(api, cfg.EmbeddingModel, cfg.EmbeddingDimension, app.Metrics), redisClient, logger.Component("embedding"))

	users, items, err := BuildIndexes(ctx, cfg, app.Metrics, logger.Component("vectorstore"))
	if err != nil {
		app.Close()
		return nil, err
	}

	llmClient, llmCloser, err := BuildLLMClient(ctx, cfg, api, awsCfg, app.Metrics, logger.Component("llm"))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, llmCloser.Close)
	app.LLM = llmClient

	var profileOpts []profile.Option
	if redisClient != nil {
		profileOpts = append(profileOpts, profile.WithCache(redisClient, cfg.ProfileCacheTTL))
	}
	app.Profiles = profile.NewManager(users, embedder, logger.Component("profile"), profileOpts...)

	app.Recommender = recommend.NewEngine(embedder, items, app.Profiles, logger.Component("recommend"),
		recommend.WithCollaborativeFilter(recommend.NewCollaborativeFilter(users, items, 0)))

	partners, err := suggest.LoadPartnerOffers(cfg.PartnerOffersFile)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Suggester = suggest.NewService(embedder, items, app.Profiles, suggest.ServiceConfig{
		LLM:                 llmClient,
		LLMGate:             cfg.SuggestLLMGate,
		LLMComposer:         cfg.SuggestLLMComposer,
		SimilarityThreshold: cfg.SimilarityThreshold,
		TopicFloor:          cfg.TopicEmbeddingFloor,
		Partners:            partners,
		Metrics:             app.Metrics,
	}, logger)

	pool := BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
	}
	app.FeedbackLog = BuildFeedbackRepository(pool)

	app.Importer = catalog.NewImporter(embedder, items, app.Profiles, logger.Component("catalog"))
	app.Source = catalog.NewSource(s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = strings.TrimSpace(cfg.AWSEndpointOverride) != ""
	}))

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	app.closers = append(app.closers, func() error { limiter.Stop(); return nil })

	scout := handlers.NewScoutHandler(handlers.ScoutConfig{
		Recommender: app.Recommender,
		Profiles:    app.Profiles,
		Suggester:   app.Suggester,
		FeedbackLog: app.FeedbackLog,
		Metrics:     app.Metrics,
		Logger:      logger.Component("http"),
	})
	app.Handler = router.New(&router.Config{
		Logger:             logger,
		Scout:              scout,
		AdminCatalog:       handlers.NewAdminCatalogHandler(app.Importer, app.FeedbackLog, logger.Component("admin")),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
