package chi

import (
	"net/http"

	"github.com/kailas-cloud/hybridex/internal/domain"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	"github.com/kailas-cloud/hybridex/internal/version"
)

// RebuildIndex handles POST /api/index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	rep, err := s.lifecycle.Rebuild(ctx)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, RebuildResponse{
		DocumentsIndexed: rep.DocumentsIndexed,
		Reembedded:       rep.Reembedded,
		VocabularySize:   rep.VocabularySize,
		Generation:       rep.Generation,
		DurationMs:       float64(rep.Duration.Microseconds()) / 1000,
	})
}

// IndexStats handles GET /api/index/stats.
func (s *Server) IndexStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lifecycle.Stats())
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	writeJSON(w, healthStatusCode(report.Status), HealthResponse{
		Status: report.Status,
		Checks: report.Checks,
	})
}

// DetailedHealth handles GET /api/health/detailed.
func (s *Server) DetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	build := version.Get()
	writeJSON(w, healthStatusCode(report.Status), DetailedHealthResponse{
		Status:        report.Status,
		Version:       build.Version,
		Commit:        build.Commit,
		UptimeSeconds: s.health.Uptime().Seconds(),
		Components:    report.Details,
		Index:         s.lifecycle.Stats(),
		Search:        s.search.Stats(),
	})
}

// Readiness handles GET /api/health/ready. Only critical components gate readiness.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	if !s.health.Ready(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, ProbeResponse{Status: "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "ready"})
}

// Liveness handles GET /api/health/live.
func (s *Server) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: "alive"})
}

// healthStatusCode keeps degraded instances in rotation.
func healthStatusCode(st healthuc.Status) int {
	if st == healthuc.Unhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
