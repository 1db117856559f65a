package cache

import (
	"context"
	"slices"
	"time"

	"github.com/kailas-cloud/hybridex/internal/metrics"
)

type embeddingKey struct {
	docID string
	hash  string
}

// EmbeddingCache holds document embeddings keyed by document id and content hash.
// A changed document hashes differently, so stale vectors are never returned.
type EmbeddingCache struct {
	c   *Cache[embeddingKey, []float32]
	ttl time.Duration
}

// EmbeddingOptions configures an EmbeddingCache.
type EmbeddingOptions struct {
	TTL        time.Duration
	MaxEntries int
	MaxBytes   int64
	Now        func() time.Time
}

// NewEmbeddingCache creates an in-memory embedding cache.
func NewEmbeddingCache(opts EmbeddingOptions) *EmbeddingCache {
	return &EmbeddingCache{
		ttl: opts.TTL,
		c: New(Options[embeddingKey, []float32]{
			MaxEntries: opts.MaxEntries,
			MaxBytes:   opts.MaxBytes,
			DefaultTTL: opts.TTL,
			Size: func(k embeddingKey, v []float32) int64 {
				return int64(len(k.docID)+len(k.hash)) + int64(len(v))*4 + 48
			},
			OnEvict: func(embeddingKey) { metrics.CacheEvictionsTotal.WithLabelValues(NameEmbeddings).Inc() },
			Now:     opts.Now,
		}),
	}
}

// Get returns a copy of the cached embedding.
func (e *EmbeddingCache) Get(_ context.Context, docID, hash string) ([]float32, bool) {
	v, ok := e.c.Get(embeddingKey{docID: docID, hash: hash})
	observe(NameEmbeddings, ok)
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Put stores a copy of vec.
func (e *EmbeddingCache) Put(_ context.Context, docID, hash string, vec []float32) {
	e.c.Put(embeddingKey{docID: docID, hash: hash}, slices.Clone(vec), e.ttl)
}

// Invalidate drops every entry of docID.
func (e *EmbeddingCache) Invalidate(_ context.Context, docID string) {
	e.c.Invalidate(func(k embeddingKey, _ []float32) bool { return k.docID == docID })
}

// Purge drops all entries.
func (e *EmbeddingCache) Purge(_ context.Context) {
	e.c.Purge()
}

// Stats returns the underlying cache counters.
func (e *EmbeddingCache) Stats() Stats { return e.c.Stats() }
