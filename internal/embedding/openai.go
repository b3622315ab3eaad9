// ABOUTME: Embedding provider for OpenAI-compatible endpoints (OpenAI, SiliconFlow, Ollama)
// ABOUTME: Batches requests, retries transient failures and checks the returned dimension
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
	"github.com/harper/ragcore/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultModel is the default embedding model
	DefaultModel = "BAAI/bge-base-en-v1.5"
	// DefaultBaseURL is the default OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.siliconflow.cn/v1"
)

// Config holds configuration for the OpenAI-compatible embedder
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Dimension   int
	BatchSize   int
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// DefaultConfig returns the default embedder configuration
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Dimension:   768,
		BatchSize:   32,
		Concurrency: 4,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Timeout:     30 * time.Second,
	}
}

// OpenAIProvider embeds text through the /embeddings endpoint
type OpenAIProvider struct {
	client *openai.Client
	cfg    Config
	logger *log.Logger
}

// NewOpenAI creates an embedder from cfg
func NewOpenAI(cfg Config, logger *log.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, models.Validationf("embedding API key is required")
	}
	if cfg.Model == "" {
		return nil, models.Validationf("embedding model is required")
	}
	if cfg.Dimension < 1 {
		return nil, models.Validationf("embedding dimension must be >= 1, got %d", cfg.Dimension)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
	}, nil
}

// Dimension returns the configured vector length
func (p *OpenAIProvider) Dimension() int {
	return p.cfg.Dimension
}

// Model returns the embedding model name
func (p *OpenAIProvider) Model() string {
	return p.cfg.Model
}

// Embed embeds a single text
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}
	vectors, err := p.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany embeds texts in batches of BatchSize with up to Concurrency
// requests in flight. A failed batch is retried text by text so that only
// the texts that really fail carry an error.
func (p *OpenAIProvider) EmbedMany(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(texts))
		g.Go(func() error {
			p.embedRange(ctx, texts[start:end], results[start:end])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *OpenAIProvider) embedRange(ctx context.Context, texts []string, out []Result) {
	var (
		send []string
		pos  []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i].Err = models.ErrEmptyInput
			continue
		}
		send = append(send, t)
		pos = append(pos, i)
	}
	if len(send) == 0 {
		return
	}

	vectors, err := p.embedBatch(ctx, send)
	if err == nil {
		for j, i := range pos {
			out[i].Vector = vectors[j]
		}
		return
	}

	if len(send) == 1 || ctx.Err() != nil {
		for _, i := range pos {
			out[i].Err = err
		}
		return
	}

	p.logger.Warn("embedding batch failed, retrying texts individually", "size", len(send), "err", err)
	for j, i := range pos {
		out[i].Vector, out[i].Err = p.Embed(ctx, send[j])
	}
}

// embedBatch sends one /embeddings request with retry
func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(p.cfg.Model),
	}
	// Only the text-embedding-3 family accepts a requested size
	if strings.HasPrefix(p.cfg.Model, "text-embedding-3") {
		req.Dimensions = p.cfg.Dimension
	}

	var vectors [][]float64
	policy := util.Policy{MaxRetries: p.cfg.MaxRetries, BaseDelay: p.cfg.RetryDelay, AttemptTimeout: p.cfg.Timeout}
	attempts, err := util.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			p.logger.Warn("retrying embedding request", "attempt", attempt+1, "batch", len(texts))
		}
		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return err
		}
		vectors, err = p.convert(resp, len(texts))
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", models.ErrEmbeddingFailed, attempts, err)
	}
	p.logger.Debug("embedded batch", "size", len(texts), "attempts", attempts)
	return vectors, nil
}

// convert maps the response into input order as float64 and checks every dimension
func (p *OpenAIProvider) convert(resp openai.EmbeddingResponse, n int) ([][]float64, error) {
	if len(resp.Data) != n {
		return nil, models.Validationf("expected %d embeddings, got %d", n, len(resp.Data))
	}
	vectors := make([][]float64, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n || vectors[d.Index] != nil {
			return nil, models.Validationf("unexpected embedding index %d", d.Index)
		}
		if len(d.Embedding) != p.cfg.Dimension {
			return nil, models.Validationf("embedding dimension mismatch: expected %d, got %d", p.cfg.Dimension, len(d.Embedding))
		}
		v := make([]float64, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float64(x)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}

var _ Provider = (*OpenAIProvider)(nil)
