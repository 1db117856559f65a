package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kailas-cloud/hybridex/internal/domain"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
)

// embedOne returns the vector for doc, from the embedding cache when its content is unchanged.
func (s *Service) embedOne(ctx context.Context, doc domdoc.Document) ([]float32, error) {
	hash := doc.ContentHash()
	if v, ok := s.embCache.Get(ctx, doc.ID(), hash); ok && len(v) == s.dim {
		return v, nil
	}
	res, err := s.embed.Embed(ctx, doc.Text())
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.ID(), err)
	}
	if err := s.checkDimension(res.Embedding); err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.ID(), err)
	}
	s.embCache.Put(ctx, doc.ID(), hash, res.Embedding)
	return res.Embedding, nil
}

// embedMany returns one vector per document. Cache misses are embedded in
// provider batches of s.batchSize, run on the worker pool.
func (s *Service) embedMany(ctx context.Context, docs []domdoc.Document) ([][]float32, int, error) {
	out := make([][]float32, len(docs))
	var misses []int
	for i := range docs {
		if v, ok := s.embCache.Get(ctx, docs[i].ID(), docs[i].ContentHash()); ok && len(v) == s.dim {
			out[i] = v
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return out, 0, nil
	}

	var chunks [][]int
	for start := 0; start < len(misses); start += s.batchSize {
		chunks = append(chunks, misses[start:min(start+s.batchSize, len(misses))])
	}

	var wg sync.WaitGroup
	errs := make([]error, len(chunks))
	for ci, chunk := range chunks {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			errs[ci] = s.embedChunk(ctx, docs, chunk, out)
		})
		if err != nil {
			wg.Done()
			errs[ci] = fmt.Errorf("submit embedding batch: %w", err)
		}
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, 0, err
	}
	return out, len(misses), nil
}

// embedChunk fills out[i] for every i in chunk. Chunks write disjoint slots.
func (s *Service) embedChunk(ctx context.Context, docs []domdoc.Document, chunk []int, out [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	texts := make([]string, len(chunk))
	for j, i := range chunk {
		texts[j] = docs[i].Text()
	}
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	for j, i := range chunk {
		v := res.Embeddings[j]
		if err := s.checkDimension(v); err != nil {
			return fmt.Errorf("embed document %s: %w", docs[i].ID(), err)
		}
		out[i] = v
		s.embCache.Put(ctx, docs[i].ID(), docs[i].ContentHash(), v)
	}
	return nil
}

func (s *Service) checkDimension(v []float32) error {
	if len(v) != s.dim {
		return fmt.Errorf("%w: provider returned %d dimensions, index expects %d",
			domain.ErrShapeMismatch, len(v), s.dim)
	}
	return nil
}
