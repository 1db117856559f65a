package lifecycle

import (
	"context"

	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
)

// Store persists documents and their embeddings.
type Store interface {
	Create(ctx context.Context, doc domdoc.Document) error
	Put(ctx context.Context, doc domdoc.Document) error
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) (document.Page, error)
	All(ctx context.Context) ([]domdoc.Document, error)
	PutEmbedding(ctx context.Context, id string, e document.Embedding) error
	GetEmbedding(ctx context.Context, id string) (document.Embedding, error)
}

// Indices publishes index snapshots. Implemented by index.Holder.
type Indices interface {
	Load() *index.Set
	Swap(lex *lexical.Index, sem *semantic.Index) *index.Set
	Bump() uint64
}

// EmbeddingCache memoizes document vectors by id and content hash.
type EmbeddingCache interface {
	Get(ctx context.Context, docID, hash string) ([]float32, bool)
	Put(ctx context.Context, docID, hash string, vec []float32)
	Invalidate(ctx context.Context, docID string)
	Purge(ctx context.Context)
}

// ResultCache drops memoized search responses.
type ResultCache interface {
	InvalidateAll(ctx context.Context)
}

type noopEmbeddingCache struct{}

func (noopEmbeddingCache) Get(context.Context, string, string) ([]float32, bool) { return nil, false }
func (noopEmbeddingCache) Put(context.Context, string, string, []float32)        {}
func (noopEmbeddingCache) Invalidate(context.Context, string)                    {}
func (noopEmbeddingCache) Purge(context.Context)                                 {}

type noopResultCache struct{}

func (noopResultCache) InvalidateAll(context.Context) {}
