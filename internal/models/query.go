// ABOUTME: Query-side models: engine configuration, generation and query results
// ABOUTME: Results carry a success flag so expected failures are values, not panics
package models

import (
	"strings"
	"time"
)

// RagConfig controls retrieval and generation for a RagEngine
type RagConfig struct {
	TopK                int     `json:"top_k" yaml:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	MaxTokens           int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature         float64 `json:"temperature" yaml:"temperature"`
	UseReranking        bool    `json:"use_reranking" yaml:"use_reranking"`
	// KeywordWeight > 0 blends keyword hits into the similarity score during reranking
	KeywordWeight  float64     `json:"keyword_weight" yaml:"keyword_weight"`
	PromptTemplate string      `json:"prompt_template" yaml:"prompt_template"`
	Chunking       ChunkConfig `json:"chunking" yaml:"chunking"`
}

// DefaultRagConfig returns the default engine configuration.
// An empty PromptTemplate means the generator's default template.
func DefaultRagConfig() RagConfig {
	return RagConfig{
		TopK:                5,
		SimilarityThreshold: 0.7,
		MaxTokens:           2048,
		Temperature:         0.7,
		UseReranking:        true,
		Chunking:            DefaultChunkConfig(),
	}
}

// Validate checks ranges and the template placeholders
func (c RagConfig) Validate() error {
	if c.TopK < 1 {
		return Validationf("top_k must be >= 1, got %d", c.TopK)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return Validationf("similarity_threshold must be in [-1, 1], got %f", c.SimilarityThreshold)
	}
	if c.MaxTokens < 1 {
		return Validationf("max_tokens must be >= 1, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return Validationf("temperature must be in [0, 2], got %f", c.Temperature)
	}
	if c.KeywordWeight < 0 {
		return Validationf("keyword_weight must be >= 0, got %f", c.KeywordWeight)
	}
	if c.PromptTemplate != "" {
		if !strings.Contains(c.PromptTemplate, "{context}") || !strings.Contains(c.PromptTemplate, "{question}") {
			return Validationf("prompt_template must contain {context} and {question}")
		}
	}
	return c.Chunking.Validate()
}

// GenerationResult is the outcome of one generator call
type GenerationResult struct {
	Success        bool           `json:"success"`
	Cancelled      bool           `json:"cancelled,omitempty"`
	Text           string         `json:"text"`
	TokenCount     int            `json:"token_count"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime time.Duration  `json:"processing_time"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Err            error          `json:"-"`
}

// Attempts returns the number of endpoint attempts recorded in metadata
func (r GenerationResult) Attempts() int {
	if n, ok := r.Metadata["attempts"].(int); ok {
		return n
	}
	return 0
}

// QueryResult is the answer to a question together with its evidence
type QueryResult struct {
	Success        bool           `json:"success"`
	Cancelled      bool           `json:"cancelled,omitempty"`
	Answer         string         `json:"answer"`
	Sources        []Chunk        `json:"sources"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime time.Duration  `json:"processing_time"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Err            error          `json:"-"`
}
