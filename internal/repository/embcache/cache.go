// Package embcache stores document embeddings in the cache store, keyed by
// document id and content hash.
package embcache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

const cacheName = "embeddings"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
}

// Cache is a Redis-backed embedding cache. Store failures are logged and
// reported as misses: the cache never fails a write path.
type Cache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates an embedding cache. keyPrefix namespaces all keys, e.g. "hybridex:".
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		store:  s,
		prefix: keyPrefix + "emb:",
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached embedding for (docID, hash).
func (c *Cache) Get(ctx context.Context, docID, hash string) ([]float32, bool) {
	key := c.key(docID, hash)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		c.observe(false)
		return nil, false
	}
	if len(data) == 0 {
		c.observe(false)
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		c.observe(false)
		return nil, false
	}
	c.observe(true)
	return vec, true
}

// Put stores vec for (docID, hash).
func (c *Cache) Put(ctx context.Context, docID, hash string, vec []float32) {
	key := c.key(docID, hash)
	if err := c.store.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every cached embedding of docID.
func (c *Cache) Invalidate(ctx context.Context, docID string) {
	c.deleteMatching(ctx, c.prefix+escapeGlob(docID)+":*")
}

// Purge removes all cached embeddings.
func (c *Cache) Purge(ctx context.Context) {
	c.deleteMatching(ctx, c.prefix+"*")
}

func (c *Cache) deleteMatching(ctx context.Context, pattern string) {
	n, err := c.store.DeleteMatching(ctx, pattern)
	if err != nil {
		c.logger.Warn("Failed to delete cached embeddings",
			zap.String("pattern", pattern), zap.Int("removed", n), zap.Error(err))
		return
	}
	c.logger.Debug("Cached embeddings removed", zap.String("pattern", pattern), zap.Int("removed", n))
}

func (c *Cache) key(docID, hash string) string {
	return c.prefix + docID + ":" + hash
}

func (c *Cache) observe(hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(cacheName, label).Inc()
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
