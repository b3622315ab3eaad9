// ABOUTME: Retriever turning a query into an embedding and a ranked set of chunks
// ABOUTME: Optional keyword rerank reorders the vector candidates without changing the set
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
)

// Options control search filtering and reranking
type Options struct {
	Threshold    float64
	UseReranking bool
	// KeywordWeight > 0 switches rerank to a blended score
	KeywordWeight float64
}

// Retriever searches an index with embeddings from a provider
type Retriever struct {
	index    index.VectorIndex
	embedder embedding.Provider
	opts     Options
	logger   *log.Logger
}

// New creates a retriever
func New(idx index.VectorIndex, embedder embedding.Provider, opts Options, logger *log.Logger) *Retriever {
	return &Retriever{
		index:    idx,
		embedder: embedder,
		opts:     opts,
		logger:   logging.OrDiscard(logger),
	}
}

// Options returns the retriever options
func (r *Retriever) Options() Options {
	return r.opts
}

// Retrieve embeds query and returns at most topK results at or above the
// threshold, reranked when enabled
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrEmptyInput
	}
	if topK < 1 {
		return nil, models.Validationf("top_k must be >= 1, got %d", topK)
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, models.ErrCancelled) || errors.Is(err, models.ErrEmbeddingFailed) {
			return nil, err
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		return nil, fmt.Errorf("%w: query embedding: %w", models.ErrEmbeddingFailed, err)
	}

	results, err := r.index.Search(vector, topK, r.opts.Threshold)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("retrieved candidates", "count", len(results), "top_k", topK, "threshold", r.opts.Threshold)

	if r.opts.UseReranking && len(results) > 1 {
		results = Rerank(query, results, r.opts.KeywordWeight)
	}
	return results, nil
}
