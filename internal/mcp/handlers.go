// ABOUTME: MCP tool handler implementations for the ragcore server
// ABOUTME: Engine errors become tool errors; results are returned as JSON text
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	engine *engine.Engine
	kbPath string
	logger *log.Logger
}

// NewHandlers creates handlers over eng
func NewHandlers(eng *engine.Engine, kbPath string, logger *log.Logger) *Handlers {
	return &Handlers{engine: eng, kbPath: kbPath, logger: logging.OrDiscard(logger)}
}

type sourceView struct {
	ChunkID string         `json:"chunk_id"`
	Content string         `json:"content"`
	Source  string         `json:"source,omitempty"`
	Score   float64        `json:"similarity,omitempty"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

func viewChunk(ch models.Chunk) sourceView {
	source := ch.MetaString(models.MetaFileName)
	if source == "" {
		source = ch.MetaString(models.MetaSource)
	}
	return sourceView{ChunkID: ch.ID, Content: ch.Content, Source: source}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

// RagQuery handles the rag_query tool
func (h *Handlers) RagQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", 0)
	if topK < 0 {
		return mcp.NewToolResultError("top_k must be positive"), nil
	}

	result := h.engine.Query(ctx, question, engine.QueryOptions{TopK: topK})
	if !result.Success {
		if result.Cancelled {
			return mcp.NewToolResultError(result.ErrorMessage), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %s", result.ErrorMessage)), nil
	}

	sources := make([]sourceView, len(result.Sources))
	for i, ch := range result.Sources {
		sources[i] = viewChunk(ch)
	}
	return jsonResult(map[string]interface{}{
		"answer":             result.Answer,
		"confidence":         result.Confidence,
		"sources":            sources,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
		"metadata":           result.Metadata,
	})
}

// SearchDocuments handles the search_documents tool
func (h *Handlers) SearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", 5)
	if topK < 1 {
		return mcp.NewToolResultError("top_k must be positive"), nil
	}

	results, err := h.engine.SearchDocuments(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	views := make([]sourceView, len(results))
	for i, r := range results {
		views[i] = viewChunk(r.Chunk)
		views[i].Score = r.Similarity
		views[i].Meta = r.Chunk.Metadata
	}
	return jsonResult(map[string]interface{}{
		"query":   query,
		"count":   len(views),
		"results": views,
	})
}

// AddDocument handles the add_document tool
func (h *Handlers) AddDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	path := request.GetString("path", "")

	var (
		report engine.IngestReport
		err    error
	)
	switch {
	case path != "" && text != "":
		return mcp.NewToolResultError("provide either text or path, not both"), nil
	case path != "":
		report, err = h.engine.IngestFile(ctx, path)
	case strings.TrimSpace(text) != "":
		meta := map[string]any{}
		if source := request.GetString("source", ""); source != "" {
			meta[models.MetaSource] = source
		}
		if title := request.GetString("title", ""); title != "" {
			meta["title"] = title
		}
		report, err = h.engine.IngestText(ctx, text, meta)
	default:
		return mcp.NewToolResultError("text or path argument is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add document: %v", err)), nil
	}

	h.logger.Info("document added via mcp", "document", report.DocumentID, "chunks", report.Chunks())
	return jsonResult(map[string]interface{}{
		"success":     true,
		"document_id": report.DocumentID,
		"source":      report.Source,
		"chunks":      report.Chunks(),
		"embedded":    report.Embedded,
		"unembedded":  report.Unembedded,
		"replaced":    report.Replaced,
	})
}

// RemoveDocument handles the remove_document tool
func (h *Handlers) RemoveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id argument is required and must be a string"), nil
	}

	n, err := h.engine.RemoveDocument(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to remove document: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"success": true,
		"id":      id,
		"removed": n,
	})
}

// KnowledgeBaseStats handles the knowledge_base_stats tool
func (h *Handlers) KnowledgeBaseStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.engine.KnowledgeBaseStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// ClearKnowledgeBase handles the clear_knowledge_base tool
func (h *Handlers) ClearKnowledgeBase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !request.GetBool("confirm", false) {
		return mcp.NewToolResultError("confirm must be true to clear the knowledge base"), nil
	}
	if err := h.engine.ClearKnowledgeBase(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear knowledge base: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"success": true})
}

// SaveKnowledgeBase handles the save_knowledge_base tool
func (h *Handlers) SaveKnowledgeBase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", h.kbPath)
	if path == "" {
		return mcp.NewToolResultError("path argument is required"), nil
	}
	if err := h.engine.SaveKnowledgeBase(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save knowledge base: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"success": true,
		"path":    path,
		"vectors": h.engine.Index().Count(),
	})
}
