package request

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
)

// Search parameter defaults and limits.
const (
	// MaxQueryLength is the default maximum query length in bytes.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 100
	DefaultAlpha   = 0.7
)

// Limits bounds request validation. Zero fields fall back to package defaults.
type Limits struct {
	MaxLimit       int
	MaxQueryLength int
}

// Request is a validated search query.
type Request struct {
	query      string
	normalized string
	searchMode mode.Mode
	limit      int
	alpha      float64
}

// New validates search parameters. Nothing is defaulted except the mode:
// a zero limit is an error, not a request for the default.
func New(query string, m mode.Mode, limit int, alpha float64, lim Limits) (Request, error) {
	maxLimit := lim.MaxLimit
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	maxLen := lim.MaxQueryLength
	if maxLen <= 0 {
		maxLen = MaxQueryLength
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidQuery)
	}
	if len(query) > maxLen {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, maxLen)
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, m)
	}
	if limit <= 0 || limit > maxLimit {
		return Request{}, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrInvalidLimit, maxLimit, limit)
	}
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return Request{}, fmt.Errorf("%w: alpha must be between 0 and 1, got %v", domain.ErrInvalidAlpha, alpha)
	}

	return Request{
		query:      trimmed,
		normalized: Normalize(trimmed),
		searchMode: m,
		limit:      limit,
		alpha:      alpha,
	}, nil
}

// Normalize lowercases the query and collapses whitespace runs.
func Normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Normalized returns the cache-normalized query text.
func (r *Request) Normalized() string { return r.normalized }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// Alpha returns the semantic weight used by hybrid fusion.
func (r *Request) Alpha() float64 { return r.alpha }

// Key renders every result-affecting parameter canonically.
func (r *Request) Key() string {
	return "q=" + strconv.Quote(r.normalized) +
		"|a=" + strconv.FormatFloat(r.alpha, 'g', -1, 64) +
		"|m=" + string(r.searchMode) +
		"|k=" + strconv.Itoa(r.limit)
}
