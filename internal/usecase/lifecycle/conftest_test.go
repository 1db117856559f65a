package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
)

const testDim = 4

// textEmbedder derives a deterministic vector from letter counts.
type textEmbedder struct {
	mu         sync.Mutex
	dim        int
	err        error
	calls      int
	batchCalls int
	texts      []string
}

func newTextEmbedder() *textEmbedder { return &textEmbedder{dim: testDim} }

func (e *textEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	v[0] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[1+int(r-'a')%(e.dim-1)]++
		}
	}
	return v
}

func (e *textEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vector(text)}, nil
}

func (e *textEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	e.batchCalls++
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func (e *textEmbedder) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls, e.batchCalls
}

// recordingResults counts full invalidations.
type recordingResults struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingResults) InvalidateAll(context.Context) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingResults) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// flakyStore fails selected operations of an in-memory store.
type flakyStore struct {
	*document.Memory
	failPutEmbedding bool
}

var errStore = errors.New("store unavailable")

func (f *flakyStore) PutEmbedding(ctx context.Context, id string, e document.Embedding) error {
	if f.failPutEmbedding {
		return errStore
	}
	return f.Memory.PutEmbedding(ctx, id, e)
}

type fixture struct {
	svc     *Service
	store   *document.Memory
	holder  *index.Holder
	emb     *textEmbedder
	results *recordingResults
}

func emptyHolder(t *testing.T) *index.Holder {
	t.Helper()
	sem, err := semantic.New(semantic.DefaultConfig(testDim))
	if err != nil {
		t.Fatalf("semantic.New: %v", err)
	}
	return index.NewHolder(lexical.New(lexical.DefaultConfig()), sem)
}

func newFixtureWithStore(t *testing.T, store Store, mem *document.Memory) *fixture {
	t.Helper()
	f := &fixture{
		store:   mem,
		holder:  emptyHolder(t),
		emb:     newTextEmbedder(),
		results: &recordingResults{},
	}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc, err := New(store, f.holder, f.emb, Options{
		Lexical:     lexical.DefaultConfig(),
		Semantic:    semantic.DefaultConfig(testDim),
		BatchSize:   2,
		Workers:     2,
		ResultCache: f.results,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	f.svc = svc
	return f
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := document.NewMemory()
	return newFixtureWithStore(t, mem, mem)
}

func (f *fixture) mustAdd(t *testing.T, id, title, body string) {
	t.Helper()
	if _, err := f.svc.Add(context.Background(), Input{ID: id, Title: title, Body: body}); err != nil {
		t.Fatalf("Add(%s): %v", id, err)
	}
}

func ids(scored []string) string { return strings.Join(scored, ",") }
