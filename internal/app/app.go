// Package app is the composition root shared by the HTTP, MCP and CLI binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/cache"
	"github.com/kailas-cloud/hybridex/internal/config"
	dbRedis "github.com/kailas-cloud/hybridex/internal/db/redis"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	documentrepo "github.com/kailas-cloud/hybridex/internal/repository/document"
	"github.com/kailas-cloud/hybridex/internal/repository/embcache"
	"github.com/kailas-cloud/hybridex/internal/repository/rescache"
	chiTransport "github.com/kailas-cloud/hybridex/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/hybridex/internal/transport/mcp"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// documentStore is the store surface the app needs beyond the lifecycle contract.
type documentStore interface {
	lifecycleuc.Store
	Ping(ctx context.Context) error
	Close() error
}

// resultCache is satisfied by both the in-memory and the Redis result caches.
type resultCache interface {
	searchuc.ResultCache
	lifecycleuc.ResultCache
}

// App holds the wired services.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Lifecycle *lifecycleuc.Service
	Search    *searchuc.Service
	Health    *healthuc.Service

	closers []func()
}

// New wires every component from cfg. Call Close to release resources.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	metrics.Register()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close document store", zap.Error(err))
		}
	})
	components := []healthuc.Component{healthuc.FromPinger("store", store, true)}

	lexCfg := lexicalConfig(cfg.Index)
	semCfg := semanticConfig(cfg.Index, cfg.Embedding.Dimensions)

	results, embeddings, cacheComponent, err := a.buildCaches(ctx)
	if err != nil {
		return nil, err
	}
	if cacheComponent != nil {
		components = append(components, *cacheComponent)
	}

	emb, err := NewEmbedders(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	components = append(components, healthuc.FromEmbedding("embedding", emb.Health, false))
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	sem, err := semantic.New(semCfg)
	if err != nil {
		return nil, fmt.Errorf("create semantic index: %w", err)
	}
	holder := index.NewHolder(lexical.New(lexCfg), sem)

	opts := lifecycleuc.Options{
		Lexical:        lexCfg,
		Semantic:       semCfg,
		BatchSize:      cfg.Embedding.BatchSize,
		Workers:        cfg.Embedding.Workers,
		EmbeddingCache: embeddings,
		ResultCache:    results,
		Logger:         logger.Named("lifecycle"),
	}
	a.Lifecycle, err = lifecycleuc.New(store, holder, emb.Document, opts)
	if err != nil {
		return nil, fmt.Errorf("create lifecycle service: %w", err)
	}
	a.closers = append(a.closers, a.Lifecycle.Close)

	a.Search = searchuc.New(holder, emb.Query, results, searchuc.Options{
		Overfetch:           cfg.Search.OverfetchFactor,
		FallbackToKeyword:   *cfg.Search.FallbackToKeyword,
		SuggestionsCapacity: cfg.Search.SuggestionsCapacity,
		Logger:              logger.Named("search"),
	})
	a.Health = healthuc.New(0, components...)

	return a, nil
}

// Warmup runs the start-up rebuild when enabled.
func (a *App) Warmup(ctx context.Context) error {
	if !*a.cfg.Index.WarmupOnStartup {
		return nil
	}
	start := time.Now()
	if err := a.Lifecycle.Warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	st := a.Lifecycle.Stats()
	a.logger.Info("Index warmed up",
		zap.Int("documents", st.CorpusSize),
		zap.Int("vocabulary", st.VocabularySize),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// HTTPServer returns the HTTP transport bound to the app's services.
func (a *App) HTTPServer() *chiTransport.Server {
	return chiTransport.NewServer(a.Search, a.Lifecycle, a.Health, chiTransport.Options{
		DefaultAlpha: a.cfg.Search.DefaultAlpha,
		DefaultLimit: a.cfg.Search.DefaultLimit,
		Limits:       a.limits(),
	}, a.logger)
}

// MCPServer returns the MCP transport bound to the app's services.
func (a *App) MCPServer() *mcpTransport.Server {
	return mcpTransport.NewServer(a.Search, a.Lifecycle, mcpTransport.Options{
		DefaultAlpha: a.cfg.Search.DefaultAlpha,
		DefaultLimit: a.cfg.Search.DefaultLimit,
		Limits:       a.limits(),
	}, a.logger.Named("mcp"))
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) limits() request.Limits {
	return request.Limits{
		MaxLimit:       a.cfg.Search.MaxLimit,
		MaxQueryLength: a.cfg.Search.MaxQueryLength,
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (documentStore, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := documentrepo.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
		return s, nil
	case "memory":
		return documentrepo.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// buildCaches returns the result and embedding caches. With the redis driver
// both live in Redis and the connection is reported as a non-critical component.
func (a *App) buildCaches(ctx context.Context) (resultCache, lifecycleuc.EmbeddingCache, *healthuc.Component, error) {
	cc := a.cfg.Cache
	resultTTL := time.Duration(cc.ResultTTLSec) * time.Second
	embeddingTTL := time.Duration(cc.EmbeddingTTLSec) * time.Second

	if cc.Driver != "redis" {
		budget := int64(cc.MemoryBudgetMB) << 20
		results := cache.NewResultCache(cache.ResultOptions{
			TTL:        resultTTL,
			MaxEntries: cc.MaxEntries,
			MaxBytes:   budget / 2,
		})
		embeddings := cache.NewEmbeddingCache(cache.EmbeddingOptions{
			TTL:        embeddingTTL,
			MaxEntries: cc.MaxEntries,
			MaxBytes:   budget / 2,
		})
		return results, embeddings, nil, nil
	}

	db := a.cfg.Database
	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: db.Addrs, Password: db.Password})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create %s store: %w", db.Driver, err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(db.ReadinessTimeout)*time.Second); err != nil {
		return nil, nil, nil, fmt.Errorf("%s not ready: %w", db.Driver, err)
	}
	a.logger.Info("Connected to cache store", zap.String("driver", db.Driver), zap.Strings("addrs", db.Addrs))

	results, err := rescache.New(store, db.KeyPrefix, resultTTL, a.logger.Named("rescache"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create result cache: %w", err)
	}
	a.closers = append(a.closers, results.Close)

	embeddings := embcache.New(store, db.KeyPrefix, embeddingTTL, a.logger.Named("embcache"))
	component := healthuc.FromPinger("cache", store, false)
	return results, embeddings, &component, nil
}

func lexicalConfig(c config.IndexConfig) lexical.Config {
	return lexical.Config{
		NGramMin:    c.NGramMin,
		NGramMax:    c.NGramMax,
		MaxFeatures: c.MaxFeatures,
		MinDF:       c.MinDF,
		MaxDF:       c.MaxDF,
		StopWords:   *c.StopWords,
	}
}

func semanticConfig(c config.IndexConfig, dim int) semantic.Config {
	return semantic.Config{
		Dimension:       dim,
		Type:            semantic.Type(c.SemanticType),
		NList:           c.IVFNList,
		NProbe:          c.IVFNProbe,
		MinTrainSize:    c.IVFMinTrainSize,
		TrainIterations: c.IVFIterations,
		CompactionRatio: c.CompactionRatio,
	}
}
