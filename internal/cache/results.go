package cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// Cache names used as metric labels.
const (
	NameResults    = "results"
	NameEmbeddings = "embeddings"
)

// hitOverhead approximates the per-hit footprint: three float64s, a slice header and string header.
const hitOverhead = 64

// ResultCache memoizes ranked responses keyed by the canonical request key.
type ResultCache struct {
	c   *Cache[string, result.Response]
	ttl time.Duration
}

// ResultOptions configures a ResultCache.
type ResultOptions struct {
	TTL        time.Duration
	MaxEntries int
	MaxBytes   int64
	Now        func() time.Time
}

// NewResultCache creates an in-memory result cache.
func NewResultCache(opts ResultOptions) *ResultCache {
	return &ResultCache{
		ttl: opts.TTL,
		c: New(Options[string, result.Response]{
			MaxEntries: opts.MaxEntries,
			MaxBytes:   opts.MaxBytes,
			DefaultTTL: opts.TTL,
			Size:       responseSize,
			OnEvict:    func(string) { metrics.CacheEvictionsTotal.WithLabelValues(NameResults).Inc() },
			Now:        opts.Now,
		}),
	}
}

// Get returns the cached response for key.
func (r *ResultCache) Get(_ context.Context, key string) (result.Response, bool) {
	resp, ok := r.c.Get(key)
	observe(NameResults, ok)
	if !ok {
		return result.Response{}, false
	}
	resp.Results = cloneHits(resp.Results)
	return resp, true
}

// Put stores a copy of resp.
func (r *ResultCache) Put(_ context.Context, key string, resp result.Response) {
	resp.Results = cloneHits(resp.Results)
	r.c.Put(key, resp, r.ttl)
}

// InvalidateAll drops every cached response.
func (r *ResultCache) InvalidateAll(_ context.Context) {
	r.c.Purge()
}

// Stats returns the underlying cache counters.
func (r *ResultCache) Stats() Stats { return r.c.Stats() }

func responseSize(key string, resp result.Response) int64 {
	n := int64(len(key) + len(resp.Query) + len(resp.DegradedReason) + 256)
	for _, h := range resp.Results {
		n += int64(len(h.DocID)) + hitOverhead
	}
	return n
}

func cloneHits(hits []result.Hit) []result.Hit {
	if hits == nil {
		return nil
	}
	return append(make([]result.Hit, 0, len(hits)), hits...)
}

func observe(name string, hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(name, label).Inc()
}
