// ABOUTME: Query pipeline: retrieve, generate, post-process and score an answer
// ABOUTME: Also the answer heuristics (label stripping, confidence) and source formatting
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harper/ragcore/internal/llm"
	"github.com/harper/ragcore/internal/models"
)

// NoEvidenceAnswer is returned when retrieval finds nothing above the threshold
const NoEvidenceAnswer = "Sorry, I could not find any information related to your question in the knowledge base. Try rephrasing the question or adding relevant documents."

// QueryCancelledMessage is the error message of a query stopped by its caller
const QueryCancelledMessage = "query cancelled"

// fallbackConfidenceCap bounds the confidence of extractive answers
const fallbackConfidenceCap = 0.3

// insufficientConfidence is reported when the answer admits missing evidence
const insufficientConfidence = 0.2

// QueryOptions adjust a single query; zero values keep the engine configuration
type QueryOptions struct {
	TopK         int
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	// OnToken streams the answer when the generator supports streaming
	OnToken func(string)
}

// Query answers question from the knowledge base. Expected failures come
// back as a result with Success=false; finding no evidence is a successful
// answer with zero confidence.
func (e *Engine) Query(ctx context.Context, question string, opts QueryOptions) models.QueryResult {
	start := time.Now()

	comp, release, err := e.acquire()
	if err != nil {
		return failedQuery(start, question, err)
	}
	defer release()

	if strings.TrimSpace(question) == "" {
		return failedQuery(start, question, models.ErrEmptyInput)
	}
	topK := comp.cfg.TopK
	if opts.TopK > 0 {
		topK = opts.TopK
	}

	results, err := comp.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		e.logger.Error("retrieval failed", "err", err)
		return failedQuery(start, question, err)
	}

	reranked := comp.cfg.UseReranking && len(results) > 1
	meta := map[string]any{
		"question":               question,
		"retrieved_chunks_count": len(results),
		"reranked":               reranked,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	}

	if len(results) == 0 {
		e.logger.Debug("no evidence above threshold", "threshold", comp.cfg.SimilarityThreshold)
		return models.QueryResult{
			Success:        true,
			Answer:         NoEvidenceAnswer,
			Sources:        []models.Chunk{},
			Confidence:     0,
			ProcessingTime: time.Since(start),
			Metadata:       meta,
		}
	}

	sources := make([]models.Chunk, len(results))
	for i, r := range results {
		sources[i] = r.Chunk
	}

	if e.opts.Generator == nil {
		answer := ExtractiveAnswer(sources)
		meta["generation_tokens"] = 0
		meta["generation_attempts"] = 0
		meta["extractive"] = true
		return models.QueryResult{
			Success:        true,
			Answer:         answer,
			Sources:        sources,
			Confidence:     min(fallbackConfidenceCap, Confidence(answer, len(sources))),
			ProcessingTime: time.Since(start),
			Metadata:       meta,
		}
	}

	gen := e.generate(ctx, comp, question, sources, opts)
	meta["generation_tokens"] = gen.TokenCount
	meta["generation_attempts"] = gen.Attempts()
	if !gen.Success {
		err := gen.Err
		if err == nil {
			err = errors.New(gen.ErrorMessage)
		}
		if gen.Cancelled || isCancelled(err) {
			r := failedQuery(start, question, err)
			r.Sources = sources
			r.Metadata = meta
			return r
		}
		return models.QueryResult{
			Success:        false,
			Sources:        sources,
			ProcessingTime: time.Since(start),
			ErrorMessage:   fmt.Sprintf("answer generation failed: %s", gen.ErrorMessage),
			Metadata:       meta,
			Err:            err,
		}
	}

	answer := PostProcess(gen.Text)
	result := models.QueryResult{
		Success:        true,
		Answer:         answer,
		Sources:        sources,
		Confidence:     Confidence(answer, len(sources)),
		ProcessingTime: time.Since(start),
		Metadata:       meta,
	}
	e.logger.Debug("query answered", "sources", len(sources), "confidence", result.Confidence, "elapsed", result.ProcessingTime)
	return result
}

func (e *Engine) generate(ctx context.Context, comp *components, question string, sources []models.Chunk, opts QueryOptions) models.GenerationResult {
	genOpts := llm.Options{
		MaxTokens:    comp.cfg.MaxTokens,
		Temperature:  comp.cfg.Temperature,
		SystemPrompt: opts.SystemPrompt,
	}
	if opts.MaxTokens > 0 {
		genOpts.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		genOpts.Temperature = opts.Temperature
	}

	if s, ok := e.opts.Generator.(streamer); ok && opts.OnToken != nil {
		prompt := llm.BuildPrompt(comp.cfg.PromptTemplate, question, sources)
		return s.GenerateStream(ctx, prompt, genOpts, opts.OnToken)
	}
	return e.opts.Generator.GenerateWithRetrieval(ctx, question, sources, comp.cfg.PromptTemplate, genOpts)
}

// SearchDocuments returns the chunks most similar to query without generating an answer
func (e *Engine) SearchDocuments(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	comp, release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if topK == 0 {
		topK = comp.cfg.TopK
	}
	return comp.retriever.Retrieve(ctx, query, topK)
}

// failedQuery builds an unsuccessful result. Cancellation is reported as
// Cancelled with its own message rather than as a failure.
func failedQuery(start time.Time, question string, err error) models.QueryResult {
	r := models.QueryResult{
		Success:        false,
		Sources:        []models.Chunk{},
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
		Metadata:       map[string]any{"question": question},
		Err:            err,
	}
	if isCancelled(err) {
		if !errors.Is(err, models.ErrCancelled) {
			r.Err = fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		r.Cancelled = true
		r.ErrorMessage = QueryCancelledMessage
	}
	return r
}

func isCancelled(err error) bool {
	return errors.Is(err, models.ErrCancelled) || errors.Is(err, context.Canceled)
}

var answerLabel = regexp.MustCompile(`(?i)\A\s*(?:answer\s*[:：]|a\s*:|回答\s*[:：]|答案\s*[:：])\s*`)

// PostProcess trims the answer and strips a leading label the model copied from the template
func PostProcess(answer string) string {
	answer = strings.TrimSpace(answer)
	answer = answerLabel.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// insufficientPhrases are refusal sentences, matched lowercase. Bare words
// such as "insufficient" also occur in ordinary answers and are not listed.
var insufficientPhrases = []string{
	strings.ToLower(llm.InsufficientEvidenceAnswer),
	"do not contain enough information",
	"does not contain enough information",
	"not enough information to answer",
	"insufficient evidence",
	"insufficient information",
	"未找到相关信息",
	"没有找到相关信息",
}

// Confidence is a cheap evidence-volume proxy, not a calibrated probability:
// 0 without sources, 0.2 when the answer admits missing evidence, otherwise
// min(1, sources/5).
func Confidence(answer string, sources int) float64 {
	if sources == 0 {
		return 0
	}
	lower := strings.ToLower(answer)
	for _, p := range insufficientPhrases {
		if strings.Contains(lower, p) {
			return insufficientConfidence
		}
	}
	return min(1.0, float64(sources)/5.0)
}

// FormatSources renders a "Sources:" list of file names with a short snippet
func FormatSources(chunks []models.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Sources:")
	for i, ch := range chunks {
		name := ch.MetaString(models.MetaFileName)
		if name == "" {
			name = ch.MetaString(models.MetaSource)
		}
		if name == "" {
			name = ch.ID
		}
		fmt.Fprintf(&b, "\n[%d] %s: %s", i+1, name, Snippet(ch.Content, 100))
	}
	return b.String()
}

// ExtractiveAnswer quotes the retrieved passages when no generator is configured
func ExtractiveAnswer(chunks []models.Chunk) string {
	var b strings.Builder
	b.WriteString("No answer generator is configured. The most relevant passages are:")
	for i, ch := range chunks {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, Snippet(ch.Content, 300))
	}
	return b.String()
}

// Snippet collapses whitespace and truncates s to n runes with an ellipsis
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
