// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hybridex"

var registerOnce sync.Once

// Register registers all collectors with the default registry. Must be called from main.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpInFlight,
			httpEmbeddingTokens,
			embeddingRequestsTotal,
			embeddingRequestDuration,
			embeddingInputsPerRequest,
			embeddingTokensTotal,
			embeddingErrorsTotal,
			SearchDuration,
			SearchRequestsTotal,
			SearchDegradedTotal,
			CacheRequestsTotal,
			CacheEvictionsTotal,
			IndexDocuments,
			IndexVocabularySize,
			IndexTombstones,
			IndexOperationsTotal,
			IndexRebuildDuration,
		)
	})
}

// Status returns the outcome label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
