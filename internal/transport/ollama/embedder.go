// Package ollama implements the embedding provider for a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

const providerName = "ollama"

// Config holds the Ollama provider settings.
type Config struct {
	ServerURL string
	Model     string
	BatchSize int
	Logger    *zap.Logger
}

// Embedder is an embedding provider backed by langchaingo's Ollama client.
type Embedder struct {
	embedder  embeddings.Embedder
	serverURL string
	model     string
	rec       metrics.EmbeddingRecorder
	http      *http.Client
	logger    *zap.Logger
}

// NewEmbedder creates an Ollama embedding provider.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("ollama: model is required")
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	embOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		embOpts = append(embOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	emb, err := embeddings.NewEmbedder(llm, embOpts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	return &Embedder{
		embedder:  emb,
		serverURL: cfg.ServerURL,
		model:     cfg.Model,
		rec:       metrics.NewEmbeddingRecorder(providerName, cfg.Model),
		http:      &http.Client{},
		logger:    cfg.Logger,
	}, nil
}

// Embed implements domain.Embedder. Ollama does not report token usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		e.rec.Failure("api_error")
		e.logger.Warn("Ollama embedding failed", zap.Int("texts", len(texts)), zap.Error(err))
		if ctx.Err() != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("ollama embed: %w", ctx.Err())
		}
		return domain.BatchEmbeddingResult{}, fmt.Errorf("ollama embed: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		e.rec.Failure("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"ollama returned %d vectors for %d texts: %w", len(vecs), len(texts), domain.ErrEmbeddingUnavailable)
	}

	e.rec.Success(len(texts), duration, 0, 0)

	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// HealthCheck pings the Ollama version endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	base := e.serverURL
	if base == "" {
		base = "http://localhost:11434"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/version", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health: status %d", resp.StatusCode)
	}
	return nil
}
