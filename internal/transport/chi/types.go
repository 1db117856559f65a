package chi

import (
	"time"

	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// ErrorCode is the machine-readable error identifier in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeRouteNotFound        ErrorCode = "route_not_found"
	CodeMethodNotAllowed     ErrorCode = "method_not_allowed"
	CodeInvalidQuery         ErrorCode = "invalid_query"
	CodeInvalidLimit         ErrorCode = "invalid_limit"
	CodeInvalidAlpha         ErrorCode = "invalid_alpha"
	CodeInvalidSearchType    ErrorCode = "invalid_search_type"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeDocumentNotFound     ErrorCode = "document_not_found"
	CodeDuplicateID          ErrorCode = "duplicate_id"
	CodeShapeMismatch        ErrorCode = "shape_mismatch"
	CodeDependencyTimeout    ErrorCode = "dependency_timeout"
	CodeEmbeddingUnavailable ErrorCode = "embedding_unavailable"
	CodeIndexCorrupt         ErrorCode = "index_corrupt"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentRequest is the body of POST /api/documents and one batch item.
type DocumentRequest struct {
	ID       string       `json:"id,omitempty"`
	Title    string       `json:"title"`
	Content  string       `json:"content"`
	Metadata metadata.Map `json:"metadata"`
}

// DocumentUpdateRequest is the body of PUT /api/documents/{id}. Omitted fields are unchanged.
type DocumentUpdateRequest struct {
	Title    *string       `json:"title,omitempty"`
	Content  *string       `json:"content,omitempty"`
	Metadata *metadata.Map `json:"metadata,omitempty"`
}

// DocumentResponse is a stored document.
type DocumentResponse struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Metadata  metadata.Map `json:"metadata"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// DocumentListResponse is one page of documents.
type DocumentListResponse struct {
	Documents  []DocumentResponse `json:"documents"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	TotalPages int                `json:"total_pages"`
}

// BatchRequest is the body of POST /api/documents/batch.
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

// BatchResultItem is the outcome of one batch item.
type BatchResultItem struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchResponse reports per-item outcomes in request order.
type BatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// SearchResultItem is a ranked hit enriched with the stored document.
// Score repeats FusedScore for clients that only read one field.
type SearchResultItem struct {
	ID            string       `json:"id"`
	DocID         string       `json:"doc_id"`
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Metadata      metadata.Map `json:"metadata"`
	Score         float64      `json:"score"`
	FusedScore    float64      `json:"fused_score"`
	SemanticScore float64      `json:"semantic_score"`
	KeywordScore  float64      `json:"keyword_score"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Results        []SearchResultItem `json:"results"`
	Query          string             `json:"query"`
	SearchType     mode.Mode          `json:"search_type"`
	Alpha          float64            `json:"alpha"`
	Limit          int                `json:"limit"`
	TotalResults   int                `json:"total_results"`
	ResponseTimeMs float64            `json:"response_time_ms"`
	ElapsedMs      float64            `json:"elapsed_ms"`
	Degraded       bool               `json:"degraded"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
	CacheHit       bool               `json:"cache_hit"`
	SearchStats    result.Stats       `json:"search_stats"`
}

// SuggestionsResponse is the body of GET /api/search/suggestions.
type SuggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// SearchStatsResponse is the body of GET /api/search/stats.
type SearchStatsResponse struct {
	Search searchuc.Stats    `json:"search"`
	Index  lifecycleuc.Stats `json:"index"`
}

// KeywordItem is one weighted term.
type KeywordItem struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// KeywordsResponse is the body of GET /api/documents/{id}/keywords.
type KeywordsResponse struct {
	DocumentID string        `json:"document_id"`
	Keywords   []KeywordItem `json:"keywords"`
}

// QueryKeywordsResponse is the body of GET /api/search/keywords.
type QueryKeywordsResponse struct {
	Query    string        `json:"query"`
	Keywords []KeywordItem `json:"keywords"`
}

// RebuildResponse is the body of POST /api/index/rebuild.
type RebuildResponse struct {
	DocumentsIndexed int     `json:"documents_indexed"`
	Reembedded       int     `json:"reembedded"`
	VocabularySize   int     `json:"vocabulary_size"`
	Generation       uint64  `json:"generation"`
	DurationMs       float64 `json:"duration_ms"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

// DetailedHealthResponse is the body of GET /api/health/detailed.
type DetailedHealthResponse struct {
	Status        healthuc.Status            `json:"status"`
	Version       string                     `json:"version"`
	Commit        string                     `json:"commit"`
	UptimeSeconds float64                    `json:"uptime_seconds"`
	Components    map[string]healthuc.Detail `json:"components"`
	Index         lifecycleuc.Stats          `json:"index"`
	Search        searchuc.Stats             `json:"search"`
}

// ProbeResponse is the body of the readiness and liveness probes.
type ProbeResponse struct {
	Status string `json:"status"`
}
