// Package mcp exposes search and index management as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
	"github.com/kailas-cloud/hybridex/internal/version"
)

// ServerName is the MCP server name
const ServerName = "hybridex"

// Options tunes request defaults.
type Options struct {
	DefaultAlpha float64
	DefaultLimit int
	Limits       request.Limits
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	search    *searchuc.Service
	lifecycle *lifecycleuc.Service
	opts      Options
	logger    *zap.Logger
}

// NewServer creates an MCP server with every tool registered.
func NewServer(search *searchuc.Service, lifecycle *lifecycleuc.Service, opts Options, logger *zap.Logger) *Server {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = request.DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, version.Version, server.WithToolCapabilities(false)),
		search:    search,
		lifecycle: lifecycle,
		opts:      opts,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until stdin closes or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio", zap.String("version", version.Version))
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{searchDocumentsTool(), s.handleSearchDocuments},
		{addDocumentTool(), s.handleAddDocument},
		{deleteDocumentTool(), s.handleDeleteDocument},
		{rebuildIndexTool(), s.handleRebuildIndex},
		{indexStatsTool(), s.handleIndexStats},
	}
	for _, t := range tools {
		s.mcp.AddTool(t.tool, s.withToolLogger(t.tool.Name, t.handler))
	}
}

// withToolLogger scopes the context logger to one tool call.
func (s *Server) withToolLogger(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logpkg.With(ctx, s.logger, zap.String("tool", name))
		start := time.Now()
		res, err := next(ctx, req)
		logpkg.FromContext(ctx).Debug("tool call",
			zap.Duration("latency", time.Since(start)),
			zap.Bool("error", err != nil),
		)
		return res, err
	}
}
