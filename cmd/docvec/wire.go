package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvec/internal/config"
	"github.com/kailas-cloud/docvec/internal/db"
	dbCosmos "github.com/kailas-cloud/docvec/internal/db/cosmos"
	dbPostgres "github.com/kailas-cloud/docvec/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/docvec/internal/db/redis"
	"github.com/kailas-cloud/docvec/internal/domain"
	"github.com/kailas-cloud/docvec/internal/domain/search/strategy"
	"github.com/kailas-cloud/docvec/internal/metrics"
	"github.com/kailas-cloud/docvec/internal/repository/embcache"
	searchrepo "github.com/kailas-cloud/docvec/internal/repository/search"
	openaiEmb "github.com/kailas-cloud/docvec/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/docvec/internal/usecase/embedding"
	searchuc "github.com/kailas-cloud/docvec/internal/usecase/search"
)

// openStore connects to the configured driver and waits until it answers.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverCosmos:
		store, err = dbCosmos.NewStore(dbCosmos.Config{
			Endpoint:       cfg.Cosmos.Endpoint,
			Key:            cfg.Cosmos.Key,
			Database:       cfg.Cosmos.Database,
			Container:      cfg.Cosmos.Container,
			PartitionField: cfg.Cosmos.PartitionField,
		})
	case config.DriverRedis, config.DriverValkey:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Redis.Addrs,
			Username:   cfg.Redis.Username,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Index:      cfg.Redis.Index,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			ServerSort: *cfg.Redis.ServerSort,
		})
	case config.DriverPostgres:
		store, err = dbPostgres.Open(ctx, dbPostgres.Config{
			DSN:   cfg.Postgres.DSN,
			Table: cfg.Postgres.Table,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s store not ready: %w", cfg.Driver, err)
	}
	logger.Info("Connected to store", zap.String("driver", cfg.Driver))
	return store, nil
}

// embeddingChain is what commands need from the assembled decorators.
type embeddingChain interface {
	domain.Embedder
	domain.HealthChecker
}

// buildEmbedder assembles the decorator chain, innermost first:
// provider -> rate-limited generator -> retry -> cache -> instrumented -> instruction.
// Cache hits skip the provider rate limit. kv may be nil; caching then stays off.
func buildEmbedder(
	cfg config.EmbeddingConfig, kv db.KVStore, instruction string, logger *zap.Logger,
) embeddingChain {
	model := cfg.Model
	if cfg.Provider == config.ProviderAzure {
		model = cfg.Deployment
	}
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		Model:      model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	gen := embeddinguc.NewGenerator(base, embeddinguc.GeneratorConfig{
		RequestsPerSecond: cfg.Rate.RPS,
		Burst:             cfg.Rate.Burst,
		MinInterval:       time.Duration(*cfg.Rate.MinIntervalMS) * time.Millisecond,
		Dimensions:        cfg.Dimensions,
	}, logger)

	var chain embeddingChain = embeddinguc.NewRetryEmbedder(gen, embeddinguc.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.Retry.MaxIntervalMS) * time.Millisecond,
	}, logger)

	switch {
	case cfg.Cache.Enabled && kv != nil:
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		chain = embcache.New(chain, kv, cfg.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	case cfg.Cache.Enabled:
		logger.Warn("Embedding cache needs a redis or valkey store, running uncached")
	}

	chain = embeddinguc.NewInstrumentedEmbedder(chain, cfg.Provider, cfg.Model, logger)

	// Instruction is outermost so the cache key includes it.
	if instruction != "" {
		chain = domain.NewInstructionEmbedder(chain, instruction)
	}
	return chain
}

// kvOf returns the store's key-value side when the driver has one.
func kvOf(store db.Store) db.KVStore {
	if kv, ok := store.(db.KVStore); ok {
		return kv
	}
	return nil
}

func newSearchService(
	cfg config.SearchConfig, embedder domain.Embedder, store db.Store, logger *zap.Logger,
) (*searchuc.Service, error) {
	st, err := strategy.Parse(cfg.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	return searchuc.New(embedder, searchrepo.New(store), searchuc.Config{
		DefaultStrategy: st,
		DefaultLimit:    cfg.DefaultLimit,
		MaxLimit:        cfg.MaxLimit,
		PartitionField:  cfg.PartitionField,
	}, logger), nil
}
