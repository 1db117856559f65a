package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
)

// Rebuild refits both indices from the document store and swaps them in atomically.
// Stored embeddings whose content hash still matches are reused. On failure the
// live indices are untouched.
func (s *Service) Rebuild(ctx context.Context) (rep RebuildReport, err error) {
	defer func() { observe("rebuild", err) }()
	start := time.Now()

	s.barrier.Lock()
	defer s.barrier.Unlock()

	docs, err := s.store.All(ctx)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("load corpus: %w", err)
	}

	vecs, reembedded, err := s.corpusVectors(ctx, docs)
	if err != nil {
		return RebuildReport{}, err
	}

	lex := lexical.New(s.lexCfg)
	lexDocs := make([]lexical.Doc, len(docs))
	ids := make([]string, len(docs))
	for i := range docs {
		lexDocs[i] = lexical.Doc{ID: docs[i].ID(), Text: docs[i].Text()}
		ids[i] = docs[i].ID()
	}
	lex.Index(lexDocs)

	sem, err := semantic.New(s.semCfg)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("semantic index: %w", err)
	}
	if err := sem.Index(ids, vecs); err != nil {
		return RebuildReport{}, fmt.Errorf("semantic index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return RebuildReport{}, err
	}

	set := s.indices.Swap(lex, sem)
	s.results.InvalidateAll(ctx)
	s.embCache.Purge(ctx)
	s.updateGauges()

	elapsed := time.Since(start)
	metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
	rep = RebuildReport{
		DocumentsIndexed: len(docs),
		Reembedded:       reembedded,
		VocabularySize:   lex.VocabularySize(),
		Generation:       set.Generation,
		Duration:         elapsed,
	}
	s.logger.Info("index rebuilt",
		zap.Int("documents", rep.DocumentsIndexed),
		zap.Int("reembedded", rep.Reembedded),
		zap.Int("vocabulary", rep.VocabularySize),
		zap.Uint64("generation", rep.Generation),
		zap.Duration("duration", elapsed),
	)
	return rep, nil
}

// corpusVectors returns one vector per document, embedding only those without
// a current stored embedding. Fresh vectors are written back to the store.
func (s *Service) corpusVectors(ctx context.Context, docs []domdoc.Document) ([][]float32, int, error) {
	vecs := make([][]float32, len(docs))
	var stale []domdoc.Document
	var staleIdx []int
	for i := range docs {
		e, err := s.store.GetEmbedding(ctx, docs[i].ID())
		switch {
		case err == nil && e.Hash == docs[i].ContentHash() && len(e.Vector) == s.dim:
			vecs[i] = e.Vector
			continue
		case err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrIndexCorrupt):
			return nil, 0, fmt.Errorf("load embedding %s: %w", docs[i].ID(), err)
		}
		stale = append(stale, docs[i])
		staleIdx = append(staleIdx, i)
	}
	if len(stale) == 0 {
		return vecs, 0, nil
	}

	fresh, _, err := s.embedMany(ctx, stale)
	if err != nil {
		return nil, 0, err
	}
	for j, i := range staleIdx {
		vecs[i] = fresh[j]
		if err := s.store.PutEmbedding(ctx, stale[j].ID(), embedding(stale[j], fresh[j])); err != nil {
			return nil, 0, fmt.Errorf("store embedding %s: %w", stale[j].ID(), err)
		}
	}
	return vecs, len(stale), nil
}

// Warmup builds the initial indices from whatever the store already holds.
func (s *Service) Warmup(ctx context.Context) error {
	rep, err := s.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	if rep.DocumentsIndexed == 0 {
		s.logger.Info("document store is empty, starting with empty indices")
	}
	return nil
}

// Stats describes the live indices.
func (s *Service) Stats() Stats {
	set := s.indices.Load()
	lc := set.Lexical.Config()
	return Stats{
		CorpusSize:         set.Lexical.Len(),
		VocabularySize:     set.Lexical.VocabularySize(),
		EmbeddingDimension: set.Semantic.Dimension(),
		IndexType:          string(set.Semantic.Type()),
		MaxFeatures:        lc.MaxFeatures,
		NGramRange:         [2]int{lc.NGramMin, lc.NGramMax},
		Tombstones:         set.Semantic.Tombstones(),
		IVFTrained:         set.Semantic.Trained(),
		Generation:         set.Generation,
		BuiltAt:            set.BuiltAt,
	}
}

func embedding(doc domdoc.Document, vec []float32) document.Embedding {
	return document.Embedding{Hash: doc.ContentHash(), Vector: vec}
}
