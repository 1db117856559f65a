// Package lifecycle is the single writer for the document corpus. It keeps the
// document store, both indices and the caches consistent across add, update,
// delete and full rebuild.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	"github.com/kailas-cloud/hybridex/internal/domain/document/patch"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/semantic"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	"github.com/kailas-cloud/hybridex/internal/repository/document"
)

// Limits and defaults.
const (
	MaxBatchSize       = 100
	DefaultPerPage     = 10
	MaxPerPage         = 100
	DefaultBatchSize   = 64
	DefaultWorkers     = 4
	DefaultKeywordsTop = 10
)

// Input is a document to add. An empty ID is replaced by a generated UUID.
type Input struct {
	ID       string
	Title    string
	Body     string
	Metadata metadata.Map
}

// Options configures the service. Zero values select defaults.
type Options struct {
	Lexical        lexical.Config
	Semantic       semantic.Config
	BatchSize      int // texts per provider call
	Workers        int // concurrent provider calls during batch add and rebuild
	EmbeddingCache EmbeddingCache
	ResultCache    ResultCache
	Logger         *zap.Logger
	Now            func() time.Time
}

// ListResult is one page of documents.
type ListResult struct {
	Documents  []domdoc.Document
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

// RebuildReport summarizes a full rebuild.
type RebuildReport struct {
	DocumentsIndexed int           `json:"documents_indexed"`
	Reembedded       int           `json:"reembedded"`
	VocabularySize   int           `json:"vocabulary_size"`
	Generation       uint64        `json:"generation"`
	Duration         time.Duration `json:"-"`
}

// Stats describes the live indices.
type Stats struct {
	CorpusSize         int       `json:"corpus_size"`
	VocabularySize     int       `json:"vocabulary_size"`
	EmbeddingDimension int       `json:"embedding_dimension"`
	IndexType          string    `json:"index_type"`
	MaxFeatures        int       `json:"max_features"`
	NGramRange         [2]int    `json:"ngram_range"`
	Tombstones         int       `json:"tombstones"`
	IVFTrained         bool      `json:"ivf_trained"`
	Generation         uint64    `json:"generation"`
	BuiltAt            time.Time `json:"built_at"`
}

// Service manages the index lifecycle.
//
// Writers hold the barrier for reading and a per-id lock; Rebuild holds the
// barrier exclusively. Searches never take either.
type Service struct {
	store    Store
	indices  Indices
	embed    domain.Embedder
	embCache EmbeddingCache
	results  ResultCache
	pool     *ants.Pool
	logger   *zap.Logger
	now      func() time.Time

	lexCfg    lexical.Config
	semCfg    semantic.Config
	dim       int
	batchSize int

	barrier sync.RWMutex
	ids     *keyedMutex
}

// New creates a lifecycle service. Call Close to release the worker pool.
func New(store Store, indices Indices, embed domain.Embedder, opts Options) (*Service, error) {
	if opts.Semantic.Dimension <= 0 {
		return nil, fmt.Errorf("lifecycle: embedding dimension must be positive, got %d", opts.Semantic.Dimension)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.EmbeddingCache == nil {
		opts.EmbeddingCache = noopEmbeddingCache{}
	}
	if opts.ResultCache == nil {
		opts.ResultCache = noopResultCache{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	return &Service{
		store:     store,
		indices:   indices,
		embed:     embed,
		embCache:  opts.EmbeddingCache,
		results:   opts.ResultCache,
		pool:      pool,
		logger:    opts.Logger,
		now:       opts.Now,
		lexCfg:    opts.Lexical,
		semCfg:    opts.Semantic,
		dim:       opts.Semantic.Dimension,
		batchSize: opts.BatchSize,
		ids:       newKeyedMutex(),
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// NewDocument validates in and stamps it with the current time.
func (s *Service) NewDocument(in Input) (domdoc.Document, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domdoc.New(id, in.Title, in.Body, in.Metadata, s.now())
}

// Add embeds, persists and indexes a new document.
func (s *Service) Add(ctx context.Context, in Input) (doc domdoc.Document, err error) {
	defer func() { observe("add", err) }()

	doc, err = s.NewDocument(in)
	if err != nil {
		return domdoc.Document{}, err
	}

	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.ids.Lock(doc.ID())
	defer unlock()

	if err := s.checkAbsent(doc.ID()); err != nil {
		return domdoc.Document{}, err
	}
	vec, err := s.embedOne(ctx, doc)
	if err != nil {
		return domdoc.Document{}, err
	}
	if err := s.insert(ctx, doc, vec); err != nil {
		return domdoc.Document{}, err
	}
	return doc, nil
}

// AddBatch adds up to MaxBatchSize documents with per-item outcomes.
// Vectors for the whole batch are requested in provider batches before any insert.
func (s *Service) AddBatch(ctx context.Context, items []Input) []dombatch.Result {
	results := make([]dombatch.Result, len(items))
	if len(items) > MaxBatchSize {
		for i, item := range items {
			results[i] = dombatch.Rejected(item.ID,
				fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidDocument, MaxBatchSize))
		}
		return results
	}

	docs := make([]domdoc.Document, 0, len(items))
	idx := make([]int, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		doc, err := s.NewDocument(item)
		if err == nil && seen[doc.ID()] {
			err = fmt.Errorf("%w: %s repeated in batch", domain.ErrDuplicateID, doc.ID())
		}
		if err != nil {
			results[i] = dombatch.Rejected(item.ID, err)
			continue
		}
		seen[doc.ID()] = true
		docs = append(docs, doc)
		idx = append(idx, i)
	}
	if len(docs) == 0 {
		return results
	}

	vecs, _, err := s.embedMany(ctx, docs)
	if err != nil {
		for j, i := range idx {
			results[i] = dombatch.Rejected(docs[j].ID(), err)
		}
		observe("add", err)
		return results
	}

	s.barrier.RLock()
	defer s.barrier.RUnlock()
	for j, i := range idx {
		err := s.addEmbedded(ctx, docs[j], vecs[j])
		observe("add", err)
		if err != nil {
			results[i] = dombatch.Rejected(docs[j].ID(), err)
			continue
		}
		results[i] = dombatch.Indexed(docs[j].ID())
	}
	return results
}

func (s *Service) addEmbedded(ctx context.Context, doc domdoc.Document, vec []float32) error {
	unlock := s.ids.Lock(doc.ID())
	defer unlock()
	if err := s.checkAbsent(doc.ID()); err != nil {
		return err
	}
	return s.insert(ctx, doc, vec)
}

func (s *Service) checkAbsent(id string) error {
	set := s.indices.Load()
	if set.Lexical.Has(id) || set.Semantic.Has(id) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, id)
	}
	return nil
}

// insert persists doc and its vector, then indexes it. Everything is undone on failure.
func (s *Service) insert(ctx context.Context, doc domdoc.Document, vec []float32) error {
	if err := s.store.Create(ctx, doc); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := s.store.PutEmbedding(ctx, doc.ID(), embedding(doc, vec)); err != nil {
		s.rollbackCreate(doc.ID())
		return fmt.Errorf("store embedding: %w", err)
	}

	set := s.indices.Load()
	if err := set.Semantic.Add(doc.ID(), vec); err != nil {
		s.rollbackCreate(doc.ID())
		return fmt.Errorf("semantic index: %w", err)
	}
	set.Lexical.Add(lexical.Doc{ID: doc.ID(), Text: doc.Text()})

	s.changed(ctx)
	return nil
}

// rollbackCreate runs without the caller's context so a cancelled request
// still leaves the store clean.
func (s *Service) rollbackCreate(id string) {
	if err := s.store.Delete(context.Background(), id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("rollback of document create failed", zap.String("doc_id", id), zap.Error(err))
	}
}

// Update applies p to an existing document. The document is re-embedded only
// when its content hash changes.
func (s *Service) Update(ctx context.Context, id string, p patch.Patch) (next domdoc.Document, err error) {
	defer func() { observe("update", err) }()

	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.ids.Lock(id)
	defer unlock()

	old, err := s.store.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	next, err = old.Apply(p, s.now())
	if err != nil {
		return domdoc.Document{}, err
	}

	if next.ContentHash() == old.ContentHash() {
		if err := s.store.Put(ctx, next); err != nil {
			return domdoc.Document{}, fmt.Errorf("store document: %w", err)
		}
		s.changed(ctx)
		return next, nil
	}

	s.embCache.Invalidate(ctx, id)
	vec, err := s.embedOne(ctx, next)
	if err != nil {
		return domdoc.Document{}, err
	}
	oldEmb, oldEmbErr := s.store.GetEmbedding(ctx, id)

	if err := s.store.Put(ctx, next); err != nil {
		return domdoc.Document{}, fmt.Errorf("store document: %w", err)
	}
	if err := s.store.PutEmbedding(ctx, id, embedding(next, vec)); err != nil {
		s.rollbackUpdate(old, oldEmb, oldEmbErr)
		return domdoc.Document{}, fmt.Errorf("store embedding: %w", err)
	}

	set := s.indices.Load()
	if err := set.Semantic.Add(id, vec); err != nil {
		s.rollbackUpdate(old, oldEmb, oldEmbErr)
		return domdoc.Document{}, fmt.Errorf("semantic index: %w", err)
	}
	set.Lexical.Add(lexical.Doc{ID: id, Text: next.Text()})

	s.changed(ctx)
	return next, nil
}

func (s *Service) rollbackUpdate(old domdoc.Document, oldEmb document.Embedding, oldEmbErr error) {
	ctx := context.Background()
	if err := s.store.Put(ctx, old); err != nil {
		s.logger.Error("rollback of document update failed", zap.String("doc_id", old.ID()), zap.Error(err))
		return
	}
	if oldEmbErr == nil {
		if err := s.store.PutEmbedding(ctx, old.ID(), oldEmb); err != nil {
			s.logger.Error("rollback of embedding update failed", zap.String("doc_id", old.ID()), zap.Error(err))
		}
	}
}

// Delete removes a document from the store, both indices and the caches.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() { observe("delete", err) }()

	s.barrier.RLock()
	defer s.barrier.RUnlock()
	unlock := s.ids.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	set := s.indices.Load()
	semOK := set.Semantic.Remove(id)
	lexOK := set.Lexical.Remove(id)
	s.embCache.Invalidate(ctx, id)
	s.changed(ctx)

	// The removal is complete either way; a stored document missing from an
	// index means the indices drifted from the store.
	if !semOK || !lexOK {
		corrupt := domain.NewIndexCorrupt("lifecycle", fmt.Sprintf("semantic=%v lexical=%v", semOK, lexOK))
		s.logger.Error("deleted document was missing from an index", zap.String("doc_id", id), zap.Error(corrupt))
		return fmt.Errorf("delete %s: %w", id, corrupt)
	}
	return nil
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns a 1-based page of documents in creation order.
func (s *Service) List(ctx context.Context, page, perPage int) (ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		return ListResult{}, fmt.Errorf("%w: per_page must be at most %d", domain.ErrInvalidLimit, MaxPerPage)
	}

	p, err := s.store.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return ListResult{}, fmt.Errorf("list documents: %w", err)
	}
	return ListResult{
		Documents:  p.Documents,
		Total:      p.Total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: int(math.Ceil(float64(p.Total) / float64(perPage))),
	}, nil
}

// Keywords returns the highest-weighted lexical terms of a document.
func (s *Service) Keywords(ctx context.Context, id string, k int) ([]lexical.Term, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if k <= 0 {
		k = DefaultKeywordsTop
	}
	terms := s.indices.Load().Lexical.Terms(id, k)
	if terms == nil {
		return []lexical.Term{}, nil
	}
	return terms, nil
}

// changed publishes a new content version and drops every cached response.
func (s *Service) changed(ctx context.Context) {
	s.indices.Bump()
	s.results.InvalidateAll(ctx)
	s.updateGauges()
}

func (s *Service) updateGauges() {
	set := s.indices.Load()
	metrics.IndexDocuments.Set(float64(set.Lexical.Len()))
	metrics.IndexVocabularySize.Set(float64(set.Lexical.VocabularySize()))
	metrics.IndexTombstones.Set(float64(set.Semantic.Tombstones()))
}

func observe(op string, err error) {
	metrics.IndexOperationsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
}
