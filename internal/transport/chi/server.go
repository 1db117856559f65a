package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/metrics"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

// maxBodyBytes covers a full batch of maximum-size documents.
const maxBodyBytes = 32 << 20

// errorHandler classifies a domain error. ok is false when err is not its sentinel.
type errorHandler func(err error) (status int, resp ErrorResponse, ok bool)

// Options tunes request defaults.
type Options struct {
	DefaultAlpha float64
	DefaultLimit int
	Limits       request.Limits
}

// Server serves the JSON API under /api.
type Server struct {
	search        *searchuc.Service
	lifecycle     *lifecycleuc.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	lifecycle *lifecycleuc.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = request.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:    search,
		lifecycle: lifecycle,
		health:    health,
		opts:      opts,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		inputHandler(domain.ErrInvalidQuery, CodeInvalidQuery),
		inputHandler(domain.ErrInvalidLimit, CodeInvalidLimit),
		inputHandler(domain.ErrInvalidAlpha, CodeInvalidAlpha),
		inputHandler(domain.ErrInvalidMode, CodeInvalidSearchType),
		inputHandler(domain.ErrInvalidDocument, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrDuplicateID, http.StatusConflict, CodeDuplicateID),
		sentinelHandler(domain.ErrShapeMismatch, http.StatusUnprocessableEntity, CodeShapeMismatch),
		sentinelHandler(domain.ErrDependencyTimeout, http.StatusGatewayTimeout, CodeDependencyTimeout),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeDependencyTimeout),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeEmbeddingUnavailable),
		sentinelHandler(domain.ErrIndexCorrupt, http.StatusInternalServerError, CodeIndexCorrupt),
	}
	return s
}

// Handler returns the router with middleware and every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeRouteNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/metrics", s.Metrics)
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Get("/search/suggestions", s.Suggestions)
		r.Get("/search/keywords", s.QueryKeywords)
		r.Get("/search/stats", s.SearchStats)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.CreateDocument)
			r.Get("/", s.ListDocuments)
			r.Post("/batch", s.BatchCreate)
			r.Get("/{id}", s.GetDocument)
			r.Put("/{id}", s.UpdateDocument)
			r.Delete("/{id}", s.DeleteDocument)
			r.Get("/{id}/keywords", s.DocumentKeywords)
		})

		r.Post("/index/rebuild", s.RebuildIndex)
		r.Get("/index/stats", s.IndexStats)

		r.Get("/health", s.HealthCheck)
		r.Get("/health/detailed", s.DetailedHealth)
		r.Get("/health/ready", s.Readiness)
		r.Get("/health/live", s.Liveness)
	})
	return r
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody reads a JSON request body and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindQuery binds an optional form-style query parameter and writes a 400 on failure.
func bindQuery(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest,
			fmt.Sprintf("Invalid format for parameter %s: %v", name, err))
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Calls() > 0 {
		w.Header().Set(metrics.EmbeddingTokensHeader, strconv.Itoa(usage.Tokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// inputHandler maps a validation sentinel to 400 with the full message.
func inputHandler(sentinel error, code ErrorCode) errorHandler {
	return func(err error) (int, ErrorResponse, bool) {
		if !errors.Is(err, sentinel) {
			return 0, ErrorResponse{}, false
		}
		return http.StatusBadRequest, ErrorResponse{Code: code, Message: err.Error()}, true
	}
}

// sentinelHandler maps a sentinel to a status and reports only the sentinel text.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(err error) (int, ErrorResponse, bool) {
		if !errors.Is(err, sentinel) {
			return 0, ErrorResponse{}, false
		}
		return status, ErrorResponse{Code: code, Message: sentinel.Error()}, true
	}
}

// classify maps err to a status and a body that is safe to show the client.
func (s *Server) classify(err error) (int, ErrorResponse) {
	for _, h := range s.errorHandlers {
		if status, resp, ok := h(err); ok {
			return status, resp
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternalError, Message: "internal error"}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	status, resp := s.classify(err)
	switch {
	case errors.Is(err, domain.ErrIndexCorrupt):
		log.Error("index corruption", zap.Error(err))
	case status == http.StatusInternalServerError:
		log.Error("unhandled error", zap.Error(err))
	default:
		log.Warn("domain error", zap.Error(err))
	}
	writeJSON(w, status, resp)
}
