package search

import (
	"context"
	"sync"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
)

// mockEmbedder maps known texts to fixed vectors and counts calls.
type mockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		v = []float32{0, 0, 1}
	}
	return domain.EmbeddingResult{Embedding: v, TotalTokens: 2}, nil
}

func (m *mockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fixtureDoc struct {
	id     string
	text   string
	vector []float32
}

var scenarioDocs = []fixtureDoc{
	{"A", "machine learning basics", []float32{1, 0, 0}},
	{"B", "deep learning networks", []float32{0.8, 0.6, 0}},
	{"C", "cooking recipes", []float32{0, 0, 1}},
}

func newEmbedder() *mockEmbedder {
	return &mockEmbedder{vectors: map[string][]float32{
		"machine learning": {0.95, 0.2, 0},
		"deep learning":    {0.5, 0.8, 0},
	}}
}

func newHolder(t *testing.T, docs []fixtureDoc) *index.Holder {
	t.Helper()
	lex := lexical.New(lexical.DefaultConfig())
	sem, err := semantic.New(semantic.DefaultConfig(3))
	if err != nil {
		t.Fatalf("semantic.New: %v", err)
	}

	lexDocs := make([]lexical.Doc, len(docs))
	ids := make([]string, len(docs))
	vecs := make([][]float32, len(docs))
	for i, d := range docs {
		lexDocs[i] = lexical.Doc{ID: d.id, Text: d.text}
		ids[i] = d.id
		vecs[i] = d.vector
	}
	lex.Index(lexDocs)
	if err := sem.Index(ids, vecs); err != nil {
		t.Fatalf("semantic.Index: %v", err)
	}
	return index.NewHolder(lex, sem)
}

func mustRequest(t *testing.T, q string, m mode.Mode, limit int, alpha float64) request.Request {
	t.Helper()
	r, err := request.New(q, m, limit, alpha, request.Limits{})
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return r
}
