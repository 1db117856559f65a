package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	embeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Provider calls by outcome.",
		},
		[]string{"provider", "model", "status"},
	)

	embeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Latency of successful provider calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	embeddingInputsPerRequest = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "inputs_per_request",
			Help:      "Texts sent in one provider call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 9),
		},
		[]string{"provider", "model"},
	)

	embeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens reported by the provider.",
		},
		[]string{"provider", "model", "type"},
	)

	embeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "errors_total",
			Help:      "Provider failures by kind.",
		},
		[]string{"provider", "model", "error_type"},
	)
)

// EmbeddingRecorder records provider calls for one provider/model pair.
type EmbeddingRecorder struct {
	provider string
	model    string
}

// NewEmbeddingRecorder returns a recorder labelled with provider and model.
func NewEmbeddingRecorder(provider, model string) EmbeddingRecorder {
	return EmbeddingRecorder{provider: provider, model: model}
}

// Success records a call that returned one vector per input.
// Zero token counts are skipped; some providers do not report usage.
func (r EmbeddingRecorder) Success(inputs int, took time.Duration, promptTokens, totalTokens int) {
	embeddingRequestsTotal.WithLabelValues(r.provider, r.model, "success").Inc()
	embeddingRequestDuration.WithLabelValues(r.provider, r.model).Observe(took.Seconds())
	embeddingInputsPerRequest.WithLabelValues(r.provider, r.model).Observe(float64(inputs))
	if totalTokens > 0 {
		embeddingTokensTotal.WithLabelValues(r.provider, r.model, "prompt").Add(float64(promptTokens))
		embeddingTokensTotal.WithLabelValues(r.provider, r.model, "total").Add(float64(totalTokens))
	}
}

// Failure records a failed call. kind is a short label such as api_error.
func (r EmbeddingRecorder) Failure(kind string) {
	embeddingRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
	embeddingErrorsTotal.WithLabelValues(r.provider, r.model, kind).Inc()
}
