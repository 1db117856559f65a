// Package rescache stores ranked search responses in the cache store.
//
// Entries live under a generation number. InvalidateAll bumps the generation,
// which orphans every older entry at once; orphans expire through their TTL.
package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

const cacheName = "results"

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// entry is the stored payload. Key guards against hash collisions.
type entry struct {
	Key      string          `json:"key"`
	Response result.Response `json:"response"`
}

// Cache is a Redis-backed result cache. Store failures are logged and
// reported as misses.
type Cache struct {
	store  store
	prefix string
	ttl    time.Duration
	logger *zap.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a result cache. keyPrefix namespaces all keys, e.g. "hybridex:".
func New(s store, keyPrefix string, ttl time.Duration, logger *zap.Logger) (*Cache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{
		store:  s,
		prefix: keyPrefix + "res:",
		ttl:    ttl,
		logger: logger,
		enc:    enc,
		dec:    dec,
	}, nil
}

// Get returns the cached response for key.
func (c *Cache) Get(ctx context.Context, key string) (result.Response, bool) {
	resp, ok := c.get(ctx, key)
	label := "miss"
	if ok {
		label = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(cacheName, label).Inc()
	return resp, ok
}

func (c *Cache) get(ctx context.Context, key string) (result.Response, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("Failed to read result cache generation", zap.Error(err))
		return result.Response{}, false
	}
	storeKey := c.entryKey(gen, key)

	data, err := c.store.Get(ctx, storeKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached result", zap.String("key", storeKey), zap.Error(err))
		}
		return result.Response{}, false
	}

	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		c.logger.Warn("Failed to decompress cached result", zap.String("key", storeKey), zap.Error(err))
		return result.Response{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("Failed to parse cached result", zap.String("key", storeKey), zap.Error(err))
		return result.Response{}, false
	}
	if e.Key != key {
		return result.Response{}, false
	}
	return e.Response, true
}

// Put stores resp under the current generation.
func (c *Cache) Put(ctx context.Context, key string, resp result.Response) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("Failed to read result cache generation", zap.Error(err))
		return
	}
	raw, err := json.Marshal(entry{Key: key, Response: resp})
	if err != nil {
		c.logger.Warn("Failed to encode result", zap.Error(err))
		return
	}
	storeKey := c.entryKey(gen, key)
	if err := c.store.SetWithTTL(ctx, storeKey, c.enc.EncodeAll(raw, nil), c.ttl); err != nil {
		c.logger.Warn("Failed to cache result", zap.String("key", storeKey), zap.Error(err))
	}
}

// InvalidateAll orphans every cached response by advancing the generation.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if _, err := c.store.Incr(ctx, c.genKey()); err != nil {
		c.logger.Warn("Failed to invalidate result cache", zap.Error(err))
	}
}

// Close releases the decoder.
func (c *Cache) Close() {
	c.dec.Close()
}

func (c *Cache) generation(ctx context.Context) (int64, error) {
	data, err := c.store.Get(ctx, c.genKey())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", data, err)
	}
	return gen, nil
}

func (c *Cache) genKey() string { return c.prefix + "gen" }

func (c *Cache) entryKey(gen int64, key string) string {
	return c.prefix + strconv.FormatInt(gen, 10) + ":" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}
