// ABOUTME: Chat-completion generator for OpenAI-compatible endpoints
// ABOUTME: Blocking and streaming generation with retry, per-attempt timeout and cancellation
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/chunker"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
	"github.com/harper/ragcore/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "deepseek-ai/DeepSeek-V3"
	// DefaultBaseURL is the default OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.siliconflow.cn/v1"
)

// Config holds configuration for the generator
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	SystemPrompt string
	HTTPClient   *http.Client
}

// DefaultConfig returns the default generator configuration
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     DefaultBaseURL,
		Model:       DefaultChatModel,
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Second,
	}
}

// Options override the configured sampling parameters for one call; zero
// values keep the configured defaults
type Options struct {
	MaxTokens    int
	Temperature  float64
	TopP         float64
	SystemPrompt string
}

// Generator produces answers through the /chat/completions endpoint. It holds
// no per-call state and is safe for concurrent use.
type Generator struct {
	client *openai.Client
	cfg    Config
	logger *log.Logger
}

// New creates a generator from cfg
func New(cfg Config, logger *log.Logger) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, models.Validationf("generation API key is required")
	}
	if cfg.Model == "" {
		return nil, models.Validationf("generation model is required")
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 10 {
		return nil, models.Validationf("max_retries must be in [0, 10], got %d", cfg.MaxRetries)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
	}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() Config {
	return g.cfg
}

// Model returns the chat model name
func (g *Generator) Model() string {
	return g.cfg.Model
}

func (g *Generator) policy() util.Policy {
	return util.Policy{MaxRetries: g.cfg.MaxRetries, BaseDelay: g.cfg.RetryDelay, AttemptTimeout: g.cfg.Timeout}
}

func (g *Generator) request(prompt string, opts Options) openai.ChatCompletionRequest {
	maxTokens := g.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	temperature := g.cfg.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	topP := g.cfg.TopP
	if opts.TopP > 0 {
		topP = opts.TopP
	}
	system := g.cfg.SystemPrompt
	if opts.SystemPrompt != "" {
		system = opts.SystemPrompt
	}

	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	return openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
		TopP:        float32(topP),
	}
}

// Generate sends prompt and waits for the full completion
func (g *Generator) Generate(ctx context.Context, prompt string, opts Options) models.GenerationResult {
	start := time.Now()
	if strings.TrimSpace(prompt) == "" {
		return failure(start, 0, g.cfg.Model, models.ErrEmptyInput)
	}

	req := g.request(prompt, opts)
	var resp openai.ChatCompletionResponse
	attempts, err := util.Retry(ctx, g.policy(), func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			g.logger.Warn("retrying generation", "attempt", attempt+1, "model", g.cfg.Model)
		}
		r, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(r.Choices) == 0 || strings.TrimSpace(r.Choices[0].Message.Content) == "" {
			return fmt.Errorf("%w: empty completion", models.ErrTransientIO)
		}
		resp = r
		return nil
	})
	if err != nil {
		return g.failed(start, attempts, err)
	}

	choice := resp.Choices[0]
	result := success(start, attempts, g.cfg.Model, choice.Message.Content, string(choice.FinishReason), resp.Usage.CompletionTokens)
	result.Metadata["prompt_tokens"] = resp.Usage.PromptTokens
	g.logger.Debug("generated answer", "attempts", attempts, "tokens", result.TokenCount, "elapsed", result.ProcessingTime)
	return result
}

// GenerateWithRetrieval assembles a prompt from chunks and generates an answer
func (g *Generator) GenerateWithRetrieval(ctx context.Context, question string, chunks []models.Chunk, template string, opts Options) models.GenerationResult {
	if strings.TrimSpace(question) == "" {
		return failure(time.Now(), 0, g.cfg.Model, models.Validationf("question cannot be empty"))
	}
	return g.Generate(ctx, BuildPrompt(template, question, chunks), opts)
}

// GenerateStream streams the completion, calling onToken for every content
// delta. Attempts are only retried while nothing has been delivered yet.
func (g *Generator) GenerateStream(ctx context.Context, prompt string, opts Options, onToken func(string)) models.GenerationResult {
	start := time.Now()
	if strings.TrimSpace(prompt) == "" {
		return failure(start, 0, g.cfg.Model, models.ErrEmptyInput)
	}

	req := g.request(prompt, opts)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	var (
		text       strings.Builder
		finish     string
		completion int
	)
	attempts, err := util.Retry(ctx, g.policy(), func(ctx context.Context, attempt int) error {
		if attempt > 0 {
			g.logger.Warn("retrying streamed generation", "attempt", attempt+1, "model", g.cfg.Model)
		}
		stream, err := g.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return err
		}
		defer func() { _ = stream.Close() }()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if text.Len() > 0 {
					// Tokens already reached the caller; a retry would repeat them
					return fmt.Errorf("stream interrupted after %d bytes: %v", text.Len(), err)
				}
				return err
			}
			if chunk.Usage != nil {
				completion = chunk.Usage.CompletionTokens
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				text.WriteString(delta)
				if onToken != nil {
					onToken(delta)
				}
			}
			if fr := chunk.Choices[0].FinishReason; fr != "" {
				finish = string(fr)
			}
		}
		if text.Len() == 0 {
			return fmt.Errorf("%w: empty completion stream", models.ErrTransientIO)
		}
		return nil
	})
	if err != nil {
		return g.failed(start, attempts, err)
	}

	result := success(start, attempts, g.cfg.Model, text.String(), finish, completion)
	result.Metadata["streamed"] = true
	return result
}

// CheckConnection verifies the endpoint answers and lists the configured model when it can
func (g *Generator) CheckConnection(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	list, err := g.client.ListModels(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reach generation endpoint: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == g.cfg.Model {
			return true, nil
		}
	}
	return false, nil
}

// ModelInfo describes the generator for status output
func (g *Generator) ModelInfo() map[string]any {
	return map[string]any{
		"model":       g.cfg.Model,
		"base_url":    g.cfg.BaseURL,
		"max_tokens":  g.cfg.MaxTokens,
		"temperature": g.cfg.Temperature,
		"top_p":       g.cfg.TopP,
		"max_retries": g.cfg.MaxRetries,
		"timeout":     g.cfg.Timeout.String(),
	}
}

func (g *Generator) failed(start time.Time, attempts int, err error) models.GenerationResult {
	if errors.Is(err, context.Canceled) {
		g.logger.Info("generation cancelled", "attempts", attempts)
		result := failure(start, attempts, g.cfg.Model, fmt.Errorf("%w: %w", models.ErrCancelled, err))
		result.Cancelled = true
		return result
	}
	g.logger.Error("generation failed", "attempts", attempts, "err", err)
	return failure(start, attempts, g.cfg.Model, fmt.Errorf("%w after %d attempts: %w", models.ErrGenerationFailed, attempts, err))
}

func success(start time.Time, attempts int, model, text, finish string, completionTokens int) models.GenerationResult {
	tokens := completionTokens
	if tokens == 0 {
		tokens, _ = chunker.EstimateTokens(text)
	}
	return models.GenerationResult{
		Success:        true,
		Text:           text,
		TokenCount:     tokens,
		Confidence:     finishConfidence(finish),
		ProcessingTime: time.Since(start),
		Metadata: map[string]any{
			"attempts":          attempts,
			"model":             model,
			"completion_tokens": completionTokens,
			"finish_reason":     finish,
		},
	}
}

func failure(start time.Time, attempts int, model string, err error) models.GenerationResult {
	return models.GenerationResult{
		Success:        false,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
		Err:            err,
		Metadata: map[string]any{
			"attempts": attempts,
			"model":    model,
		},
	}
}

// finishConfidence is a coarse signal from the finish reason, not a calibrated probability
func finishConfidence(finish string) float64 {
	switch openai.FinishReason(finish) {
	case openai.FinishReasonStop:
		return 0.9
	case openai.FinishReasonLength:
		return 0.6
	default:
		return 0.5
	}
}
