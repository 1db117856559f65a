package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/config"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		HTTP:      config.HTTPConfig{Port: 8000},
		Embedding: config.EmbeddingConfig{Provider: "local", Dimensions: 32},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestNew_MemoryStackServesSearch(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	for _, in := range []lifecycleuc.Input{
		{ID: "go", Title: "Go", Body: "goroutines and channels"},
		{ID: "rust", Title: "Rust", Body: "ownership and borrowing"},
	} {
		if _, err := a.Lifecycle.Add(ctx, in); err != nil {
			t.Fatalf("Add %s: %v", in.ID, err)
		}
	}
	if err := a.Warmup(ctx); err != nil {
		t.Fatalf("Warmup: %v", err)
	}

	req, err := request.New("goroutines", mode.Keyword, 5, 0.7, request.Limits{})
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	resp, err := a.Search.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocID != "go" {
		t.Errorf("results = %+v, want only go", resp.Results)
	}

	if rep := a.Health.Check(ctx); rep.Status != healthuc.Healthy {
		t.Errorf("health = %s", rep.Status)
	}
}

func TestNew_HTTPServerMountsAPI(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	srv := httptest.NewServer(a.HTTPServer().Handler())
	defer srv.Close()

	for path, want := range map[string]int{
		"/api/search/stats": http.StatusOK,
		"/api/health/live":  http.StatusOK,
		"/api/search?q=":    http.StatusBadRequest,
		"/nope":             http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestNew_SQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage = config.StorageConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "docs.db")}

	a, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Lifecycle.Add(ctx, lifecycleuc.Input{ID: "kept", Body: "persistent text"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a.Close()

	b, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	if err := b.Warmup(ctx); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	if st := b.Lifecycle.Stats(); st.CorpusSize != 1 {
		t.Errorf("corpus size after restart = %d, want 1", st.CorpusSize)
	}
}

func TestNewEmbedders_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.EmbeddingConfig
	}{
		{"unknown provider", config.EmbeddingConfig{Provider: "cohere", Dimensions: 8}},
		{"ollama without model", config.EmbeddingConfig{Provider: "ollama", Dimensions: 8}},
		{"local with negative dimension", config.EmbeddingConfig{Provider: "local", Dimensions: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEmbedders(tc.cfg, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestNewEmbedders_PrefixOnlyWhenSet(t *testing.T) {
	e, err := NewEmbedders(config.EmbeddingConfig{Provider: "local", Dimensions: 8, QueryPrefix: "query: "}, nil)
	if err != nil {
		t.Fatalf("NewEmbedders: %v", err)
	}
	if e.Query == e.Document {
		t.Error("query side should carry the prefix wrapper")
	}

	ctx := context.Background()
	q, err := e.Query.Embed(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	d, err := e.Document.Embed(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Embedding) != 8 || len(d.Embedding) != 8 {
		t.Errorf("dimensions = %d/%d, want 8", len(q.Embedding), len(d.Embedding))
	}
}
