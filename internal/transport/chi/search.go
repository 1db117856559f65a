package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// Search handles GET /api/search?q=&limit=&alpha=&type=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var (
		q, searchType *string
		limit         *int
		alpha         *float64
	)
	if !bindQuery(w, r, "q", &q) ||
		!bindQuery(w, r, "limit", &limit) ||
		!bindQuery(w, r, "alpha", &alpha) ||
		!bindQuery(w, r, "type", &searchType) {
		return
	}

	req, err := s.searchRequest(q, searchType, limit, alpha)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items, err := s.enrich(r, resp.Results)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Results:        items,
		Query:          resp.Query,
		SearchType:     resp.Mode,
		Alpha:          resp.Alpha,
		Limit:          resp.Limit,
		TotalResults:   len(items),
		ResponseTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		ElapsedMs:      resp.ElapsedMs,
		Degraded:       resp.Degraded,
		DegradedReason: resp.DegradedReason,
		CacheHit:       resp.CacheHit,
		SearchStats:    resp.Stats,
	})
}

// searchRequest applies server defaults to absent parameters. A present limit
// of 0 is passed through and rejected by validation.
func (s *Server) searchRequest(q, searchType *string, limit *int, alpha *float64) (request.Request, error) {
	m, err := mode.Parse(derefString(searchType))
	if err != nil {
		return request.Request{}, err
	}
	k := s.opts.DefaultLimit
	if limit != nil {
		k = *limit
	}
	a := s.opts.DefaultAlpha
	if alpha != nil {
		a = *alpha
	}
	return request.New(derefString(q), m, k, a, s.opts.Limits)
}

// enrich joins ranked hits with their stored documents. A hit whose document
// was deleted after ranking is dropped.
func (s *Server) enrich(r *http.Request, hits []result.Hit) ([]SearchResultItem, error) {
	items := make([]SearchResultItem, 0, len(hits))
	for _, h := range hits {
		doc, err := s.lifecycle.Get(r.Context(), h.DocID)
		if errors.Is(err, domain.ErrNotFound) {
			logpkg.FromContext(r.Context()).Debug("ranked document vanished", zap.String("doc_id", h.DocID))
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, SearchResultItem{
			ID:            h.DocID,
			DocID:         h.DocID,
			Title:         doc.Title(),
			Content:       doc.Body(),
			Metadata:      doc.Metadata(),
			Score:         h.Score,
			FusedScore:    h.Score,
			SemanticScore: h.SemanticScore,
			KeywordScore:  h.KeywordScore,
			CreatedAt:     doc.CreatedAt(),
			UpdatedAt:     doc.UpdatedAt(),
		})
	}
	return items, nil
}

// Suggestions handles GET /api/search/suggestions?q=&limit=.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	var q *string
	var limit *int
	if !bindQuery(w, r, "q", &q) || !bindQuery(w, r, "limit", &limit) {
		return
	}

	k := searchuc.DefaultSuggestLimit
	if limit != nil {
		k = *limit
	}
	if k < 1 || k > s.maxLimit() {
		writeError(w, http.StatusBadRequest, CodeInvalidLimit,
			fmt.Sprintf("limit must be between 1 and %d, got %d", s.maxLimit(), k))
		return
	}

	writeJSON(w, http.StatusOK, SuggestionsResponse{
		Query:       derefString(q),
		Suggestions: s.search.Suggest(derefString(q), k),
	})
}

// QueryKeywords handles GET /api/search/keywords?q=&limit=.
func (s *Server) QueryKeywords(w http.ResponseWriter, r *http.Request) {
	var q *string
	var limit *int
	if !bindQuery(w, r, "q", &q) || !bindQuery(w, r, "limit", &limit) {
		return
	}

	text := strings.TrimSpace(derefString(q))
	if text == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "q must not be empty")
		return
	}
	k := searchuc.DefaultKeywordsLimit
	if limit != nil {
		k = *limit
	}
	if k < 1 || k > s.maxLimit() {
		writeError(w, http.StatusBadRequest, CodeInvalidLimit,
			fmt.Sprintf("limit must be between 1 and %d, got %d", s.maxLimit(), k))
		return
	}

	terms := s.search.QueryKeywords(text, k)
	items := make([]KeywordItem, len(terms))
	for i, t := range terms {
		items[i] = KeywordItem{Term: t.Term, Weight: t.Weight}
	}
	writeJSON(w, http.StatusOK, QueryKeywordsResponse{Query: text, Keywords: items})
}

// SearchStats handles GET /api/search/stats.
func (s *Server) SearchStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SearchStatsResponse{
		Search: s.search.Stats(),
		Index:  s.lifecycle.Stats(),
	})
}

func (s *Server) maxLimit() int {
	if s.opts.Limits.MaxLimit > 0 {
		return s.opts.Limits.MaxLimit
	}
	return request.MaxLimit
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
