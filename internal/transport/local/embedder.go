// Package local implements an offline embedding provider based on feature hashing.
//
// Word unigrams, word bigrams and character trigrams are hashed into a fixed
// number of signed buckets and the vector is L2-normalized. Texts sharing
// vocabulary land close together, which is enough for development, tests and
// air-gapped deployments; it carries no semantics beyond surface overlap.
package local

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/hybridex/internal/domain"
)

// DefaultDimension is used when Config.Dimension is not set.
const DefaultDimension = 384

// Embedder is a deterministic feature-hashing embedder. Safe for concurrent use.
type Embedder struct {
	dim int
}

// New creates a local embedder producing dim-dimensional vectors.
func New(dim int) (*Embedder, error) {
	if dim < 0 {
		return nil, errors.New("local embedder: dimension must be positive")
	}
	if dim == 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}, nil
}

// Dimension returns the vector size.
func (e *Embedder) Dimension() int { return e.dim }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // caller cancellation passes through
	}
	return domain.EmbeddingResult{Embedding: e.vector(text)}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // caller cancellation passes through
		}
		out[i] = e.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(text string) []float32 {
	acc := make([]float64, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, w := range words {
		e.add(acc, "w:"+w, 1)
		if i > 0 {
			e.add(acc, "b:"+words[i-1]+" "+w, 0.5)
		}
		padded := []rune("^" + w + "$")
		for j := 0; j+3 <= len(padded); j++ {
			e.add(acc, "c:"+string(padded[j:j+3]), 0.25)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	if norm == 0 {
		// featureless text still needs a unit vector
		acc[xxhash.Sum64String("empty")%uint64(e.dim)] = 1
		norm = 1
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	bucket := h % uint64(e.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}
