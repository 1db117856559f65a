package search

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/index"
)

// Indices publishes the current index snapshot and its content version.
type Indices interface {
	Load() *index.Set
	Version() uint64
}

// ResultCache memoizes ranked responses. Implementations swallow store errors.
type ResultCache interface {
	Get(ctx context.Context, key string) (result.Response, bool)
	Put(ctx context.Context, key string, resp result.Response)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
