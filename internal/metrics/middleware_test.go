package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})
	r.Post("/api/documents", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(EmbeddingTokensHeader, "12")
		w.WriteHeader(http.StatusCreated)
	})
	return r
}

func serve(h http.Handler, method, path string) {
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	h := newRouter()
	const route = "/api/documents/{id}"
	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200"))
	missBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "404"))

	serve(h, "GET", "/api/documents/a")
	serve(h, "GET", "/api/documents/b")
	serve(h, "GET", "/api/documents/missing")

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "200")) - okBefore; got != 2 {
		t.Errorf("200 count delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", route, "404")) - missBefore; got != 1 {
		t.Errorf("404 count delta = %v, want 1", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("no latency observations")
	}
	if v := testutil.ToFloat64(httpInFlight); v != 0 {
		t.Errorf("in flight = %v after requests finished", v)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	h := newRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	serve(h, "GET", "/nope")
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")) - before; got != 1 {
		t.Errorf("unmatched delta = %v, want 1", got)
	}
}

func TestMiddleware_CountsEmbeddingTokens(t *testing.T) {
	h := newRouter()
	before := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/api/documents"))
	serve(h, "POST", "/api/documents")
	serve(h, "POST", "/api/documents")
	if got := testutil.ToFloat64(httpEmbeddingTokens.WithLabelValues("/api/documents")) - before; got != 24 {
		t.Errorf("tokens delta = %v, want 24", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("boom")) != "error" {
		t.Error("unexpected status labels")
	}
}

func TestEmbeddingRecorder(t *testing.T) {
	rec := NewEmbeddingRecorder("test-provider", "test-model")
	okBefore := testutil.ToFloat64(embeddingRequestsTotal.WithLabelValues("test-provider", "test-model", "success"))
	tokBefore := testutil.ToFloat64(embeddingTokensTotal.WithLabelValues("test-provider", "test-model", "total"))
	errBefore := testutil.ToFloat64(embeddingErrorsTotal.WithLabelValues("test-provider", "test-model", "timeout"))

	rec.Success(4, 10*time.Millisecond, 30, 32)
	rec.Success(1, time.Millisecond, 0, 0)
	rec.Failure("timeout")

	if got := testutil.ToFloat64(embeddingRequestsTotal.WithLabelValues("test-provider", "test-model", "success")) - okBefore; got != 2 {
		t.Errorf("success delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(embeddingTokensTotal.WithLabelValues("test-provider", "test-model", "total")) - tokBefore; got != 32 {
		t.Errorf("token delta = %v, want 32", got)
	}
	if got := testutil.ToFloat64(embeddingErrorsTotal.WithLabelValues("test-provider", "test-model", "timeout")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}
