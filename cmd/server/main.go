// ABOUTME: Main entry point for the ragcore MCP server with stdio transport
// ABOUTME: Opens the configured knowledge base and serves the MCP tools
package main

import (
	"context"
	"os"
	"time"

	"github.com/harper/ragcore/internal/app"
	"github.com/harper/ragcore/internal/config"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func main() {
	logger := logging.New(os.Stderr, os.Getenv("RAGCORE_LOG_LEVEL"))

	if err := config.LoadEnvFiles(); err != nil {
		logger.Warn("could not load .env", "err", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(logging.New(os.Stderr, cfg.LogLevel).GetLevel())

	if !cfg.HasAPIKey() {
		logger.Warn("RAGCORE_API_KEY not set: answers will be extractive")
	}

	a, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to open knowledge base", "err", err)
	}
	defer func() {
		if err := a.Persist(); err != nil {
			logger.Error("failed to save knowledge base", "err", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	}()

	server := mcpserver.NewMCPServer(
		"ragcore",
		"0.1.0",
	)
	mcp.RegisterTools(server, a.Engine, cfg.KnowledgeBase, logger)

	logger.Info("ragcore MCP server starting on stdio", "vectors", a.Engine.Index().Count())
	if err := mcpserver.ServeStdio(server); err != nil {
		logger.Error("server error", "err", err)
	}
}
