package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	"github.com/kailas-cloud/hybridex/internal/index"
	"github.com/kailas-cloud/hybridex/internal/index/lexical"
	"github.com/kailas-cloud/hybridex/internal/index/topk"
	"github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// DefaultOverfetch is the candidate multiplier used by each side of a hybrid search.
const DefaultOverfetch = 2

// DefaultSuggestLimit is used when Suggest gets a non-positive limit.
const DefaultSuggestLimit = 5

// DefaultKeywordsLimit is used when QueryKeywords gets a non-positive limit.
const DefaultKeywordsLimit = 10

// Options tunes the ranker. Zero values select defaults.
type Options struct {
	Overfetch           int
	FallbackToKeyword   bool
	SuggestionsCapacity int
	Logger              *zap.Logger
}

// Stats are process-lifetime search counters.
type Stats struct {
	Searches     uint64  `json:"total_searches"`
	CacheHits    uint64  `json:"cache_hits"`
	Degraded     uint64  `json:"degraded"`
	Failed       uint64  `json:"failed"`
	AvgElapsedMs float64 `json:"avg_response_time_ms"`
}

// Service ranks documents across semantic, keyword, and hybrid modes.
type Service struct {
	indices Indices
	embed   Embedder
	cache   ResultCache
	opts    Options
	logger  *zap.Logger
	tracker *suggestions

	searches  atomic.Uint64
	cacheHits atomic.Uint64
	degraded  atomic.Uint64
	failed    atomic.Uint64
	elapsedUs atomic.Uint64
}

// New creates a search service. cache may be nil.
func New(indices Indices, embed Embedder, cache ResultCache, opts Options) *Service {
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultOverfetch
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		indices: indices,
		embed:   embed,
		cache:   cache,
		opts:    opts,
		logger:  opts.Logger,
		tracker: newSuggestions(opts.SuggestionsCapacity),
	}
}

// Search ranks documents for a validated request.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Response, error) {
	start := time.Now()
	resp, err := s.search(ctx, req)
	elapsed := time.Since(start)

	m := string(req.Mode())
	metrics.SearchDuration.WithLabelValues(m).Observe(elapsed.Seconds())
	metrics.SearchRequestsTotal.WithLabelValues(m, metrics.Status(err)).Inc()
	s.searches.Add(1)
	s.elapsedUs.Add(uint64(elapsed.Microseconds()))
	if err != nil {
		s.failed.Add(1)
		return result.Response{}, err
	}

	resp.ElapsedMs = float64(elapsed.Microseconds()) / 1000
	if resp.CacheHit {
		s.cacheHits.Add(1)
	}
	if resp.Degraded {
		s.degraded.Add(1)
		metrics.SearchDegradedTotal.Inc()
	}
	// Every answered query counts, cache hits included: suggestions rank by how
	// often a query is asked, not by how often it is computed.
	s.tracker.record(req.Normalized())
	return resp, nil
}

func (s *Service) search(ctx context.Context, req request.Request) (result.Response, error) {
	log := logger.FromContext(ctx)

	// The version prefix keeps a result computed before a mutation from
	// landing under a key that post-mutation readers would hit.
	key := "v=" + strconv.FormatUint(s.indices.Version(), 10) + "|" + req.Key()
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			cached.CacheHit = true
			return cached, nil
		}
	}

	set := s.indices.Load()
	resp := result.Response{
		Query: req.Query(),
		Mode:  req.Mode(),
		Alpha: req.Alpha(),
		Limit: req.Limit(),
	}

	var err error
	switch req.Mode() {
	case mode.Keyword:
		err = s.keyword(set, req, &resp)
	case mode.Semantic:
		err = s.semantic(ctx, set, req, &resp)
	case mode.Hybrid:
		err = s.hybrid(ctx, set, req, &resp)
	default:
		return result.Response{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, req.Mode())
	}
	if err != nil {
		return result.Response{}, err
	}

	if resp.Degraded {
		log.Warn("search degraded to keyword results",
			zap.String("query", req.Normalized()),
			zap.String("reason", resp.DegradedReason),
		)
		return resp, nil
	}
	if s.cache != nil && ctx.Err() == nil {
		s.cache.Put(ctx, key, resp)
	}
	return resp, nil
}

func (s *Service) keyword(set *index.Set, req request.Request, resp *result.Response) error {
	cands := set.Lexical.Query(req.Normalized(), req.Limit())
	resp.Results = single(cands, false)
	resp.Stats = result.Stats{KeywordCandidates: len(cands), UniqueDocuments: len(cands)}
	return nil
}

func (s *Service) semantic(ctx context.Context, set *index.Set, req request.Request, resp *result.Response) error {
	cands, err := s.semanticCandidates(ctx, set, req.Normalized(), req.Limit())
	if err != nil {
		return err
	}
	resp.Results = single(cands, true)
	resp.Stats = result.Stats{SemanticCandidates: len(cands), UniqueDocuments: len(cands)}
	return nil
}

func (s *Service) hybrid(ctx context.Context, set *index.Set, req request.Request, resp *result.Response) error {
	k := req.Limit()
	n := max(k, s.opts.Overfetch*k)

	var sem, kw []topk.Scored
	var semErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sem, err = s.semanticCandidates(gctx, set, req.Normalized(), n)
		if err != nil && s.opts.FallbackToKeyword && degradable(ctx, err) {
			// Kept aside so the lexical side is not cancelled.
			semErr = err
			return nil
		}
		return err
	})
	g.Go(func() error {
		kw = set.Lexical.Query(req.Normalized(), n)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return err
	}

	alpha := req.Alpha()
	if semErr != nil {
		// Pure keyword ranking: the fused score is the keyword score.
		resp.Degraded = true
		resp.DegradedReason = semErr.Error()
		sem = nil
		alpha = 0
	}
	hits, unique := fuse(sem, kw, alpha, k)
	resp.Results = hits
	resp.Stats = result.Stats{
		SemanticCandidates: len(sem),
		KeywordCandidates:  len(kw),
		UniqueDocuments:    unique,
	}
	return nil
}

// semanticCandidates embeds text and queries the vector index. An empty index
// answers without calling the provider.
func (s *Service) semanticCandidates(ctx context.Context, set *index.Set, text string, k int) ([]topk.Scored, error) {
	if set.Semantic.Len() == 0 {
		return []topk.Scored{}, nil
	}
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	cands, err := set.Semantic.Query(emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	return cands, nil
}

// degradable reports whether a semantic failure may be answered with keyword
// results. Caller cancellation never is.
func degradable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return domain.IsDependencyFailure(err) || errors.Is(err, domain.ErrShapeMismatch)
}

// Suggest returns past successful queries containing fragment.
func (s *Service) Suggest(fragment string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	return s.tracker.match(fragment, limit)
}

// QueryKeywords returns the highest-weighted vocabulary terms of text, as the
// lexical side of a search sees them. Terms outside the vocabulary are dropped.
func (s *Service) QueryKeywords(text string, limit int) []lexical.Term {
	if limit <= 0 {
		limit = DefaultKeywordsLimit
	}
	return s.indices.Load().Lexical.QueryTerms(text, limit)
}

// Stats returns a snapshot of the search counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Searches:  s.searches.Load(),
		CacheHits: s.cacheHits.Load(),
		Degraded:  s.degraded.Load(),
		Failed:    s.failed.Load(),
	}
	if st.Searches > 0 {
		st.AvgElapsedMs = float64(s.elapsedUs.Load()) / 1000 / float64(st.Searches)
	}
	return st
}
