package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/document/metadata"
	"github.com/kailas-cloud/hybridex/internal/domain/search/mode"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotFound     = -32001 // No document with the given id
	ErrorCodeDuplicateID          = -32002 // A document with the given id exists
	ErrorCodeDependencyFailure    = -32003 // Embedding provider failed or timed out
	ErrorCodeEmbeddingShapeFailed = -32004 // Provider returned a vector of the wrong dimension
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    any
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data any) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)

	m, err := mode.Parse(getStringDefault(args, "search_type", ""))
	if err != nil {
		return nil, s.toolError(ctx, err)
	}
	searchReq, err := request.New(
		getStringDefault(args, "query", ""),
		m,
		getIntDefault(args, "limit", s.opts.DefaultLimit),
		getFloatDefault(args, "alpha", s.opts.DefaultAlpha),
		s.opts.Limits,
	)
	if err != nil {
		return nil, s.toolError(ctx, err)
	}

	resp, err := s.search.Search(ctx, searchReq)
	if err != nil {
		return nil, s.toolError(ctx, err)
	}

	results := make([]map[string]any, 0, len(resp.Results))
	for _, h := range resp.Results {
		doc, err := s.lifecycle.Get(ctx, h.DocID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, s.toolError(ctx, err)
		}
		results = append(results, map[string]any{
			"id":             h.DocID,
			"title":          doc.Title(),
			"content":        doc.Body(),
			"metadata":       doc.Metadata(),
			"fused_score":    h.Score,
			"semantic_score": h.SemanticScore,
			"keyword_score":  h.KeywordScore,
		})
	}

	response := map[string]any{
		"query":         resp.Query,
		"search_type":   resp.Mode,
		"alpha":         resp.Alpha,
		"total_results": len(results),
		"results":       results,
		"degraded":      resp.Degraded,
		"cache_hit":     resp.CacheHit,
		"elapsed_ms":    resp.ElapsedMs,
	}
	if resp.Degraded {
		response["degraded_reason"] = resp.DegradedReason
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddDocument handles the add_document tool invocation
func (s *Server) handleAddDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]any{
			"param":  "content",
			"reason": "missing or empty",
		})
	}

	var md metadata.Map
	if raw, ok := args["metadata"].(map[string]any); ok {
		var err error
		if md, err = metadata.FromAny(raw); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid metadata", map[string]any{
				"param":  "metadata",
				"reason": err.Error(),
			})
		}
	}

	doc, err := s.lifecycle.Add(ctx, lifecycleuc.Input{
		ID:       getStringDefault(args, "id", ""),
		Title:    getStringDefault(args, "title", ""),
		Body:     content,
		Metadata: md,
	})
	if err != nil {
		return nil, s.toolError(ctx, err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"id":         doc.ID(),
		"created_at": doc.CreatedAt(),
	})), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(req)

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]any{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	if err := s.lifecycle.Delete(ctx, id); err != nil {
		return nil, s.toolError(ctx, err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"id": id, "deleted": true})), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.lifecycle.Rebuild(ctx)
	if err != nil {
		return nil, s.toolError(ctx, err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"documents_indexed": rep.DocumentsIndexed,
		"reembedded":        rep.Reembedded,
		"vocabulary_size":   rep.VocabularySize,
		"generation":        rep.Generation,
		"duration_ms":       rep.Duration.Milliseconds(),
	})), nil
}

// handleIndexStats handles the index_stats tool invocation
func (s *Server) handleIndexStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"index":  s.lifecycle.Stats(),
		"search": s.search.Stats(),
	})), nil
}

// toolError maps a domain error to an MCP error. Dependency and internal
// details stay in the log.
func (s *Server) toolError(ctx context.Context, err error) error {
	log := logpkg.FromContext(ctx)
	switch {
	case errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidLimit),
		errors.Is(err, domain.ErrInvalidAlpha),
		errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrInvalidDocument):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return newMCPError(ErrorCodeDocumentNotFound, domain.ErrNotFound.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateID):
		return newMCPError(ErrorCodeDuplicateID, domain.ErrDuplicateID.Error(), nil)
	case errors.Is(err, domain.ErrShapeMismatch):
		log.Warn("embedding shape mismatch", zap.Error(err))
		return newMCPError(ErrorCodeEmbeddingShapeFailed, domain.ErrShapeMismatch.Error(), nil)
	case domain.IsDependencyFailure(err):
		log.Warn("dependency failure", zap.Error(err))
		return newMCPError(ErrorCodeDependencyFailure, "embedding provider unavailable", nil)
	default:
		log.Error("tool failed", zap.Error(err))
		return newMCPError(ErrorCodeInternalError, "internal error", nil)
	}
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]any) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]any, key string, defaultValue float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]any, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
