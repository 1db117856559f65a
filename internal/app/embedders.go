package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/config"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/transport/local"
	"github.com/kailas-cloud/hybridex/internal/transport/ollama"
	openaiEmb "github.com/kailas-cloud/hybridex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/hybridex/internal/usecase/embedding"
)

// Embedders are the two ends of one provider chain. Document and query sides
// share the guard, so they share its rate limit.
type Embedders struct {
	Document domain.Embedder
	Query    domain.Embedder
	Health   domain.HealthChecker
}

// NewEmbedders assembles the decorator chain: provider -> Guarded -> Instrumented -> Prefix.
func NewEmbedders(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedders, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := newProvider(cfg, logger)
	if err != nil {
		return Embedders{}, err
	}

	guarded := embeddinguc.NewGuardedEmbedder(base, embeddinguc.GuardOptions{
		Timeout:   cfg.Timeout(),
		RPS:       cfg.RateLimitRPS,
		Burst:     cfg.RateLimitBurst,
		Dimension: cfg.Dimensions,
	})
	instrumented := embeddinguc.NewInstrumentedEmbedder(guarded, cfg.Provider, cfg.Model, cfg.BatchSize, logger)

	return Embedders{
		Document: withPrefix(instrumented, cfg.DocumentPrefix),
		Query:    withPrefix(instrumented, cfg.QueryPrefix),
		Health:   guarded,
	}, nil
}

func newProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	prov := cfg.Providers[cfg.Provider]
	switch cfg.Provider {
	case "openai":
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     prov.APIKey,
			BaseURL:    prov.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), nil
	case "ollama":
		e, err := ollama.NewEmbedder(&ollama.Config{
			ServerURL: prov.BaseURL,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		return e, nil
	case "local":
		e, err := local.New(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("create local embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// withPrefix is outermost so the prefix is part of every provider input.
func withPrefix(e domain.Embedder, prefix string) domain.Embedder {
	if prefix == "" {
		return e
	}
	return domain.NewPrefixEmbedder(e, prefix)
}
