package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/app"
	"github.com/kailas-cloud/hybridex/internal/config"
	logpkg "github.com/kailas-cloud/hybridex/internal/logger"
	"github.com/kailas-cloud/hybridex/internal/version"
)

// stdout carries the protocol; the logger writes to stderr.
func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(logpkg.Options{Env: env, Level: cfg.Logging.Level, Service: "hybridex-mcp"})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting hybridex MCP server",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if err := a.Warmup(ctx); err != nil {
		logger.Error("Index warmup failed", zap.Error(err))
	}

	if err := a.MCPServer().Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", zap.Error(err))
		return
	}
	logger.Info("MCP server stopped")
}
