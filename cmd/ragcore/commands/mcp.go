// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Enables LLM agents like Claude to query the knowledge base via stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/ragcore/internal/app"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs ragcore as an MCP (Model Context Protocol) server, enabling
LLM agents like Claude to search and query the knowledge base via stdio.

Configure in Claude Desktop's config file to enable the tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  ragcore mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "ragcore": {
  #       "command": "ragcore",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol, so logs go to stderr only
	logger := logging.ForCLI(os.Stderr, verbose, quiet)
	if !cfg.HasAPIKey() {
		logger.Warn("no API key set: answers will be extractive")
	}

	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("opening knowledge base: %w", err)
	}

	server := mcpserver.NewMCPServer(
		"ragcore",
		build.Version,
	)
	mcp.RegisterTools(server, a.Engine, cfg.KnowledgeBase, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("MCP server starting on stdio", "vectors", a.Engine.Index().Count())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	if err := a.Persist(); err != nil {
		logger.Error("failed to save knowledge base", "err", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
	return runErr
}
