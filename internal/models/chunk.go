// ABOUTME: Chunk represents a token-bounded text segment used as the retrieval unit
// ABOUTME: Also defines the chunking strategies and their configuration
package models

import "fmt"

// ChunkStrategy selects how the chunker finds candidate boundaries
type ChunkStrategy string

const (
	StrategyFixedSize ChunkStrategy = "fixed_size"
	StrategyParagraph ChunkStrategy = "paragraph"
	StrategySentence  ChunkStrategy = "sentence"
	StrategySemantic  ChunkStrategy = "semantic"
)

// Metadata keys shared between the chunker, the index and the engine
const (
	MetaDocumentID   = "document_id"
	MetaSource       = "source"
	MetaFileName     = "file_name"
	MetaUnembedded   = "unembedded"
	MetaEmbedError   = "embedding_error"
	MetaChunkMethod  = "chunk_method"
	MetaChunkSize    = "chunk_size"
	MetaChunkOverlap = "chunk_overlap"
	MetaCreatedTime  = "created_time"
	MetaOverlap      = "overlap_tokens"
	MetaOverlapLen   = "overlap_length"
)

// Chunk is a bounded piece of document text with an estimated token count.
// Chunks are immutable once produced; use WithMetadata to derive a changed copy.
type Chunk struct {
	ID            string         `json:"chunk_id"`
	Content       string         `json:"content"`
	SequenceIndex int            `json:"chunk_index"`
	TokenCount    int            `json:"token_count"`
	Metadata      map[string]any `json:"metadata"`
}

// Clone returns a deep copy of the chunk's metadata map so the copy can be owned elsewhere
func (c Chunk) Clone() Chunk {
	out := c
	out.Metadata = CloneMetadata(c.Metadata)
	return out
}

// WithMetadata returns a copy of the chunk with key set to value
func (c Chunk) WithMetadata(key string, value any) Chunk {
	out := c.Clone()
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.Metadata[key] = value
	return out
}

// WithoutMetadata returns a copy of the chunk with the given keys removed
func (c Chunk) WithoutMetadata(keys ...string) Chunk {
	out := c.Clone()
	for _, k := range keys {
		delete(out.Metadata, k)
	}
	return out
}

// MetaString returns the metadata value for key formatted as a string, or "" when absent
func (c Chunk) MetaString(key string) string {
	v, ok := c.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IsUnembedded reports whether the chunk was stored without a real embedding
func (c Chunk) IsUnembedded() bool {
	switch v := c.Metadata[MetaUnembedded].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// CloneMetadata copies a metadata map (shallow per value)
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ChunkConfig controls chunk sizes (in estimated tokens) and the splitting strategy
type ChunkConfig struct {
	Strategy     ChunkStrategy `json:"strategy" yaml:"strategy"`
	ChunkSize    int           `json:"chunk_size" yaml:"chunk_size"`
	OverlapSize  int           `json:"overlap_size" yaml:"overlap_size"`
	MinChunkSize int           `json:"min_chunk_size" yaml:"min_chunk_size"`
	MaxChunkSize int           `json:"max_chunk_size" yaml:"max_chunk_size"`
}

// DefaultChunkConfig returns the default chunking configuration
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Strategy:     StrategySemantic,
		ChunkSize:    500,
		OverlapSize:  100,
		MinChunkSize: 100,
		MaxChunkSize: 1000,
	}
}

// Validate checks the sizes are coherent
func (c ChunkConfig) Validate() error {
	switch c.Strategy {
	case StrategyFixedSize, StrategyParagraph, StrategySentence, StrategySemantic:
	default:
		return Validationf("unknown chunk strategy %q", c.Strategy)
	}
	if c.ChunkSize <= 0 {
		return Validationf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.OverlapSize < 0 || c.OverlapSize >= c.ChunkSize {
		return Validationf("overlap_size must be in [0, chunk_size), got %d", c.OverlapSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.ChunkSize {
		return Validationf("min_chunk_size must be in [0, chunk_size], got %d", c.MinChunkSize)
	}
	if c.MaxChunkSize < c.ChunkSize {
		return Validationf("max_chunk_size must be >= chunk_size, got %d", c.MaxChunkSize)
	}
	return nil
}
