package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestPrefixEmbedder_Embed(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewPrefixEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "machine learning")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.got[0] != "query: machine learning" {
		t.Errorf("provider saw %q", inner.got[0])
	}
	if len(res.Embedding) != 3 {
		t.Errorf("dimension = %d", len(res.Embedding))
	}

	inner.err = ErrEmbeddingUnavailable
	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestPrefixEmbedder_BatchPrefixesEveryText(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}, TotalTokens: 4}}
	emb := NewPrefixEmbedder(inner, "passage: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.batchTexts[0] != "passage: a" || inner.batchTexts[1] != "passage: b" {
		t.Errorf("provider saw %v", inner.batchTexts)
	}
	if res.TotalTokens != 4 {
		t.Errorf("TotalTokens = %d", res.TotalTokens)
	}
}

func TestEmbedAll(t *testing.T) {
	t.Run("native batch", func(t *testing.T) {
		inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}}}
		res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
		if err != nil || len(res.Embeddings) != 2 {
			t.Fatalf("EmbedAll = %v, %v", res.Embeddings, err)
		}
		if len(inner.got) != 0 {
			t.Errorf("single Embed called %d times", len(inner.got))
		}
	})
	t.Run("short batch is unavailable", func(t *testing.T) {
		inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}
		if _, err := EmbedAll(context.Background(), inner, []string{"a", "b"}); !errors.Is(err, ErrEmbeddingUnavailable) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("per text sums usage", func(t *testing.T) {
		inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}, PromptTokens: 5, TotalTokens: 6}}
		res, err := EmbedAll(context.Background(), inner, []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("EmbedAll: %v", err)
		}
		if len(res.Embeddings) != 3 || res.PromptTokens != 15 || res.TotalTokens != 18 {
			t.Errorf("res = %+v", res)
		}
	})
	t.Run("per text error names position", func(t *testing.T) {
		inner := &stubEmbedder{err: errors.New("fail")}
		_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
		if err == nil || err.Error() != "embed text 1 of 2: fail" {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("empty", func(t *testing.T) {
		res, err := EmbedAll(context.Background(), &stubEmbedder{}, nil)
		if err != nil || len(res.Embeddings) != 0 {
			t.Errorf("EmbedAll(nil) = %v, %v", res.Embeddings, err)
		}
	})
}

func TestBatchEmbeddingResult_Append(t *testing.T) {
	var r BatchEmbeddingResult
	r.Append(BatchEmbeddingResult{Embeddings: [][]float32{{1}}, PromptTokens: 1, TotalTokens: 2})
	r.Append(BatchEmbeddingResult{Embeddings: [][]float32{{2}, {3}}, PromptTokens: 3, TotalTokens: 4})
	if len(r.Embeddings) != 3 || r.Embeddings[2][0] != 3 || r.PromptTokens != 4 || r.TotalTokens != 6 {
		t.Errorf("r = %+v", r)
	}
}

func TestEmbeddingUsage(t *testing.T) {
	var nilUsage *EmbeddingUsage
	nilUsage.Record(5)
	if nilUsage.Calls() != 0 || nilUsage.Tokens() != 0 {
		t.Error("nil tally must read as empty")
	}

	ctx, u := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).Record(0)
	UsageFromContext(ctx).Record(7)
	if u.Calls() != 2 || u.Tokens() != 7 {
		t.Errorf("calls/tokens = %d/%d", u.Calls(), u.Tokens())
	}
	if UsageFromContext(context.Background()) != nil {
		t.Error("bare context has a tally")
	}
}

func TestIndexCorruptError_Unwraps(t *testing.T) {
	err := NewIndexCorrupt("semantic", "slot 3 has no id")
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Fatal("expected errors.Is(err, ErrIndexCorrupt)")
	}
	var ice *IndexCorruptError
	if !errors.As(err, &ice) || ice.Component != "semantic" {
		t.Errorf("expected component semantic, got %v", err)
	}
}

func TestIsDependencyFailure(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrEmbeddingUnavailable, true},
		{ErrDependencyTimeout, true},
		{ErrInvalidQuery, false},
		{ErrShapeMismatch, false},
	}
	for _, tc := range cases {
		if got := IsDependencyFailure(tc.err); got != tc.want {
			t.Errorf("IsDependencyFailure(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
