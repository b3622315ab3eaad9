// ABOUTME: MCP tool definitions and registration for the ragcore server
// ABOUTME: Defines JSON schemas for the seven knowledge-base tools
package mcp

import (
	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/logging"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all MCP tools with the server. kbPath is where
// save_knowledge_base writes when no path is given; empty disables the default.
func RegisterTools(server *mcpserver.MCPServer, eng *engine.Engine, kbPath string, logger *log.Logger) *Handlers {
	handlers := NewHandlers(eng, kbPath, logger)

	// 1. rag_query - Answer a question from the knowledge base
	server.AddTool(mcp.Tool{
		Name:        "rag_query",
		Description: "Answer a question using only the documents in the knowledge base. Returns the answer, a confidence score and the source passages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Number of passages to retrieve (default: configured top_k)",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.RagQuery)

	// 2. search_documents - Semantic search without generation
	server.AddTool(mcp.Tool{
		Name:        "search_documents",
		Description: "Find the passages most similar to a query without generating an answer.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchDocuments)

	// 3. add_document - Ingest text or a file
	server.AddTool(mcp.Tool{
		Name:        "add_document",
		Description: "Add a document to the knowledge base, either as inline text or as a path to a .txt, .md or .pdf file. Re-adding the same source replaces it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Document text (use this or path)",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a file to load (use this or text)",
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Optional source name for inline text",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Optional title stored in the chunk metadata",
				},
			},
		},
	}, handlers.AddDocument)

	// 4. remove_document - Remove a document or chunk
	server.AddTool(mcp.Tool{
		Name:        "remove_document",
		Description: "Remove a document by document id, source or file path, or a single chunk by chunk id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Document id, source, file path or chunk id",
				},
			},
			Required: []string{"id"},
		},
	}, handlers.RemoveDocument)

	// 5. knowledge_base_stats - Index statistics
	server.AddTool(mcp.Tool{
		Name:        "knowledge_base_stats",
		Description: "Get knowledge base statistics: vector and document counts, unembedded chunks and the active configuration.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.KnowledgeBaseStats)

	// 6. clear_knowledge_base - Remove everything
	server.AddTool(mcp.Tool{
		Name:        "clear_knowledge_base",
		Description: "Remove every document from the knowledge base. Requires confirm=true.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to clear the knowledge base",
				},
			},
			Required: []string{"confirm"},
		},
	}, handlers.ClearKnowledgeBase)

	// 7. save_knowledge_base - Write a snapshot
	server.AddTool(mcp.Tool{
		Name:        "save_knowledge_base",
		Description: "Save a JSON snapshot of the knowledge base.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Snapshot path (default: the configured knowledge base file)",
				},
			},
		},
	}, handlers.SaveKnowledgeBase)

	logging.OrDiscard(logger).Debug("registered mcp tools", "count", 7)
	return handlers
}
