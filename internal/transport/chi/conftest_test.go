package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/cache"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
	"github.com/kailas-cloud/hybridex/internal/transport/local"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

const testDim = 32

// failingEmbedder wraps the local embedder and fails on demand.
type failingEmbedder struct {
	inner *local.Embedder
	mu    sync.Mutex
	err   error
}

func (e *failingEmbedder) fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *failingEmbedder) current() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *failingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.current(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return e.inner.Embed(ctx, text)
}

func (e *failingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if err := e.current(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return e.inner.BatchEmbed(ctx, texts)
}

// flakyPinger is a health component whose outcome tests can flip.
type flakyPinger struct {
	mu  sync.Mutex
	err error
}

func (p *flakyPinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *flakyPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

type testEnv struct {
	srv    *httptest.Server
	emb    *failingEmbedder
	store  *flakyPinger
	holder *index.Holder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base, err := local.New(testDim)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	emb := &failingEmbedder{inner: base}

	sem, err := semantic.New(semantic.DefaultConfig(testDim))
	if err != nil {
		t.Fatalf("semantic.New: %v", err)
	}
	holder := index.NewHolder(lexical.New(lexical.DefaultConfig()), sem)
	results := cache.NewResultCache(cache.ResultOptions{MaxEntries: 100})

	lifecycle, err := lifecycleuc.New(document.NewMemory(), holder, emb, lifecycleuc.Options{
		Lexical:     lexical.DefaultConfig(),
		Semantic:    semantic.DefaultConfig(testDim),
		ResultCache: results,
	})
	if err != nil {
		t.Fatalf("lifecycle.New: %v", err)
	}
	t.Cleanup(lifecycle.Close)

	search := searchuc.New(holder, emb, results, searchuc.Options{FallbackToKeyword: true})

	store := &flakyPinger{}
	health := healthuc.New(0,
		healthuc.FromPinger("store", store, true),
		healthuc.Component{Name: "embedding", Check: func(context.Context) error { return emb.current() }},
	)

	server := NewServer(search, lifecycle, health, Options{
		DefaultAlpha: 0.7,
		DefaultLimit: 10,
	}, nil)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, emb: emb, store: store, holder: holder}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var rd io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

func (e *testEnv) addDoc(t *testing.T, id, title, content string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/documents", DocumentRequest{ID: id, Title: title, Content: content}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add %s: status %d", id, resp.StatusCode)
	}
}

// seed adds the three-document corpus and rebuilds so the vocabulary covers it.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	e.addDoc(t, "A", "ML intro", "machine learning basics")
	e.addDoc(t, "B", "DL intro", "deep learning networks")
	e.addDoc(t, "C", "Kitchen", "cooking recipes")
	if resp := e.do(t, http.MethodPost, "/api/index/rebuild", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild: status %d", resp.StatusCode)
	}
}

func expectError(t *testing.T, resp *http.Response, body ErrorResponse, status int, code ErrorCode) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status: got %d, want %d", resp.StatusCode, status)
	}
	if body.Code != code {
		t.Errorf("code: got %q, want %q (message %q)", body.Code, code, body.Message)
	}
}
