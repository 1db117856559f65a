package result

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
)

// Hit is a single ranked document. All scores lie in [0, 1].
type Hit struct {
	DocID         string  `json:"doc_id"`
	Score         float64 `json:"fused_score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
}

// Stats describes the candidate pools behind a response.
type Stats struct {
	SemanticCandidates int `json:"semantic_results_count"`
	KeywordCandidates  int `json:"keyword_results_count"`
	UniqueDocuments    int `json:"unique_documents"`
}

// Response is the ranked result list returned by the hybrid ranker.
type Response struct {
	Results        []Hit     `json:"results"`
	Query          string    `json:"query"`
	Mode           mode.Mode `json:"search_type"`
	Alpha          float64   `json:"alpha"`
	Limit          int       `json:"limit"`
	ElapsedMs      float64   `json:"elapsed_ms"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
	Stats          Stats     `json:"search_stats"`
}

// Sort orders hits by fused score descending, ties by doc id ascending.
func Sort(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
}

// IDs returns the doc ids in order.
func IDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	return ids
}
