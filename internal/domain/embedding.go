package domain

import (
	"context"
	"fmt"
)

// Embedder turns one text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder turns many texts into vectors with one provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens the provider charged for it.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order and the summed usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Append adds the vectors and usage of other in order.
func (r *BatchEmbeddingResult) Append(other BatchEmbeddingResult) {
	r.Embeddings = append(r.Embeddings, other.Embeddings...)
	r.PromptTokens += other.PromptTokens
	r.TotalTokens += other.TotalTokens
}

// EmbedAll returns exactly one vector per text. It uses the native batch call
// when e has one and embeds text by text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return BatchEmbeddingResult{}, nil
	}
	be, ok := e.(BatchEmbedder)
	if !ok {
		return embedEach(ctx, e, texts)
	}
	res, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf(
			"%w: provider returned %d vectors for %d texts", ErrEmbeddingUnavailable, len(res.Embeddings), len(texts))
	}
	return res, nil
}

func embedEach(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// PrefixEmbedder prepends a fixed prefix to every text. Asymmetric models
// (e5, bge, Qwen3) expect one prefix on documents and another on queries.
type PrefixEmbedder struct {
	inner  Embedder
	prefix string
}

// NewPrefixEmbedder wraps inner.
func NewPrefixEmbedder(inner Embedder, prefix string) *PrefixEmbedder {
	return &PrefixEmbedder{inner: inner, prefix: prefix}
}

// Embed implements Embedder.
func (e *PrefixEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("prefixed embed: %w", err)
	}
	return res, nil
}

// BatchEmbed implements BatchEmbedder.
func (e *PrefixEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = e.prefix + t
	}
	res, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("prefixed batch embed: %w", err)
	}
	return res, nil
}
