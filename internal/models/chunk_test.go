// ABOUTME: Tests for Chunk helpers and chunk configuration validation
// ABOUTME: Verifies metadata copy semantics and config range checks
package models

import (
	"errors"
	"testing"
)

func TestChunk_WithMetadataDoesNotAlias(t *testing.T) {
	orig := Chunk{ID: "chunk_1", Content: "hello", Metadata: map[string]any{"source": "a.txt"}}

	changed := orig.WithMetadata(MetaUnembedded, true)

	if orig.IsUnembedded() {
		t.Error("original chunk should not be modified")
	}
	if !changed.IsUnembedded() {
		t.Error("copy should be flagged unembedded")
	}
	if changed.MetaString("source") != "a.txt" {
		t.Errorf("source = %q, want a.txt", changed.MetaString("source"))
	}

	cleared := changed.WithoutMetadata(MetaUnembedded)
	if cleared.IsUnembedded() {
		t.Error("WithoutMetadata should drop the flag")
	}
	if !changed.IsUnembedded() {
		t.Error("WithoutMetadata should not modify its receiver")
	}
}

func TestChunk_WithMetadataOnNilMap(t *testing.T) {
	c := Chunk{ID: "chunk_1"}.WithMetadata("k", 1)
	if c.MetaString("k") != "1" {
		t.Errorf("MetaString(k) = %q, want 1", c.MetaString("k"))
	}
	if c.MetaString("missing") != "" {
		t.Error("missing key should render as empty string")
	}
}

func TestChunk_IsUnembeddedStringForm(t *testing.T) {
	// Metadata decoded from YAML/flat stores may carry the flag as a string
	c := Chunk{Metadata: map[string]any{MetaUnembedded: "true"}}
	if !c.IsUnembedded() {
		t.Error("string \"true\" should count as unembedded")
	}
}

func TestChunkConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ChunkConfig)
		wantErr bool
	}{
		{"defaults", func(c *ChunkConfig) {}, false},
		{"unknown strategy", func(c *ChunkConfig) { c.Strategy = "random" }, true},
		{"zero chunk size", func(c *ChunkConfig) { c.ChunkSize = 0 }, true},
		{"overlap equals chunk size", func(c *ChunkConfig) { c.OverlapSize = c.ChunkSize }, true},
		{"negative overlap", func(c *ChunkConfig) { c.OverlapSize = -1 }, true},
		{"min above chunk size", func(c *ChunkConfig) { c.MinChunkSize = c.ChunkSize + 1 }, true},
		{"max below chunk size", func(c *ChunkConfig) { c.MaxChunkSize = c.ChunkSize - 1 }, true},
		{"no overlap", func(c *ChunkConfig) { c.OverlapSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChunkConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation: %v", err)
			}
		})
	}
}

func TestRagConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RagConfig)
		wantErr bool
	}{
		{"defaults", func(c *RagConfig) {}, false},
		{"top_k zero", func(c *RagConfig) { c.TopK = 0 }, true},
		{"threshold above one", func(c *RagConfig) { c.SimilarityThreshold = 1.5 }, true},
		{"negative temperature", func(c *RagConfig) { c.Temperature = -0.1 }, true},
		{"template missing question", func(c *RagConfig) { c.PromptTemplate = "ctx: {context}" }, true},
		{"custom template", func(c *RagConfig) { c.PromptTemplate = "{context}\nQ: {question}" }, false},
		{"bad chunking", func(c *RagConfig) { c.Chunking.ChunkSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRagConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	if !errors.Is(ErrEmptyInput, ErrValidation) {
		t.Error("ErrEmptyInput should wrap ErrValidation")
	}
	if !errors.Is(NotFoundf("id %s", "x"), ErrNotFound) {
		t.Error("NotFoundf should wrap ErrNotFound")
	}
	if !errors.Is(Statef("closed"), ErrState) {
		t.Error("Statef should wrap ErrState")
	}
	if got := Validationf("top_k %d", 0).Error(); got != "validation error: top_k 0" {
		t.Errorf("Validationf message = %q", got)
	}
}
