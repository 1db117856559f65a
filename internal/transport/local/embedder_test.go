package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbed_DeterministicUnitVectors(t *testing.T) {
	e, err := New(64)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Machine learning basics")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "machine   LEARNING basics!")
	require.NoError(t, err)

	assert.Len(t, a.Embedding, 64)
	assert.Equal(t, a.Embedding, b.Embedding, "case and punctuation do not matter")
	assert.InDelta(t, 1.0, cosine(a.Embedding, a.Embedding), 1e-5)
}

func TestEmbed_OverlapRanksCloser(t *testing.T) {
	e, _ := New(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "machine learning")
	ml, _ := e.Embed(ctx, "machine learning basics")
	cook, _ := e.Embed(ctx, "cooking recipes")

	assert.Greater(t, cosine(q.Embedding, ml.Embedding), cosine(q.Embedding, cook.Embedding))
}

func TestEmbed_EmptyTextIsStillUnit(t *testing.T) {
	e, _ := New(32)
	res, err := e.Embed(context.Background(), "  ... ")
	require.NoError(t, err)
	var norm float64
	for _, v := range res.Embedding {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestBatchEmbed(t *testing.T) {
	e, _ := New(0)
	assert.Equal(t, DefaultDimension, e.Dimension())

	res, err := e.BatchEmbed(context.Background(), []string{"a b", "c d", "e f"})
	require.NoError(t, err)
	assert.Len(t, res.Embeddings, 3)

	single, _ := e.Embed(context.Background(), "c d")
	assert.Equal(t, single.Embedding, res.Embeddings[1])
}

func TestEmbed_Cancelled(t *testing.T) {
	e, _ := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
