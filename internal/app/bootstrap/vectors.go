package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/scoutlabs/pinecone-scout/internal/config"
	"github.com/scoutlabs/pinecone-scout/internal/embedding"
	"github.com/scoutlabs/pinecone-scout/internal/vectorstore"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// BuildEmbedder wraps the OpenAI embedder with the Redis cache when one is
// available.
func BuildEmbedder(cfg *appconfig.Config, inner *embedding.OpenAIEmbedder, redisClient *redis.Client, logger *logging.Logger) embedding.Embedder {
	if redisClient == nil {
		return inner
	}
	space := inner.Model()
	logger.Info("embedding cache enabled", "space", space, "ttl", cfg.EmbeddingCacheTTL)
	return embedding.NewCachedEmbedder(inner, redisClient, space, cfg.EmbeddingCacheTTL, logger)
}

// BuildIndexes opens the users and items indexes for the configured backend.
// Pinecone indexes are created when missing and guarded by a circuit breaker.
func BuildIndexes(ctx context.Context, cfg *appconfig.Config, observer vectorstore.Observer, logger *logging.Logger) (users, items vectorstore.Index, err error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.VectorBackend {
	case appconfig.VectorBackendMemory:
		logger.Warn("using in-memory vector indexes; data is lost on restart")
		return vectorstore.NewMemoryIndex(cfg.EmbeddingDimension), vectorstore.NewMemoryIndex(cfg.EmbeddingDimension), nil
	case appconfig.VectorBackendPinecone:
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown vector backend %q", cfg.VectorBackend)
	}

	pc, err := vectorstore.NewPineconeClient(cfg.PineconeAPIKey)
	if err != nil {
		return nil, nil, err
	}
	open := func(name string) (vectorstore.Index, error) {
		openCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		idx, err := vectorstore.OpenPineconeIndex(openCtx, pc, vectorstore.IndexSpec{
			Name:      name,
			Dimension: cfg.EmbeddingDimension,
			Cloud:     cfg.PineconeCloud,
			Region:    cfg.PineconeRegion,
			Namespace: cfg.PineconeNamespace,
		}, logger)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewGuardedIndex(idx, vectorstore.GuardOptions{
			Name:        name,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
			CallTimeout: cfg.ExternalTimeout,
			Observer:    observer,
		}), nil
	}

	if users, err = open(cfg.UsersIndexName); err != nil {
		return nil, nil, err
	}
	if items, err = open(cfg.ItemsIndexName); err != nil {
		return nil, nil, err
	}
	logger.Info("pinecone indexes ready", "users", cfg.UsersIndexName, "items", cfg.ItemsIndexName)
	return users, items, nil
}
