// ABOUTME: Vector index models for stored embeddings and search results
// ABOUTME: Defines VectorEntry, SearchResult and IndexStats
package models

import (
	"fmt"
	"time"
)

// VectorEntry is one stored embedding together with the chunk it was computed from
type VectorEntry struct {
	ID         string    `json:"id"`
	Vector     []float64 `json:"vector"`
	Chunk      Chunk     `json:"chunk"`
	InsertedAt time.Time `json:"timestamp"`
}

// ValidateDimension checks that the vector is non-empty and has the expected length
func (e VectorEntry) ValidateDimension(expected int) error {
	return ValidateVector(e.Vector, expected)
}

// ValidateVector checks a raw vector against the expected dimension
func ValidateVector(v []float64, expected int) error {
	if len(v) == 0 {
		return Validationf("vector cannot be empty")
	}
	if len(v) != expected {
		return Validationf("dimension mismatch: expected %d, got %d", expected, len(v))
	}
	return nil
}

// SearchResult is a read-only projection of a matched entry
type SearchResult struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Chunk      Chunk   `json:"chunk"`
}

// Metadata returns the matched chunk's metadata
func (r SearchResult) Metadata() map[string]any {
	return r.Chunk.Metadata
}

// IndexStats summarizes the contents of a vector index
type IndexStats struct {
	VectorCount       int       `json:"vector_count"`
	Dimension         int       `json:"vector_dimension"`
	StorageType       string    `json:"storage_type"`
	Metric            string    `json:"metric"`
	UnembeddedCount   int       `json:"unembedded_count"`
	DocumentCount     int       `json:"document_count"`
	EstimatedMemoryMB float64   `json:"estimated_memory_mb"`
	OldestEntry       time.Time `json:"oldest_entry,omitempty"`
	NewestEntry       time.Time `json:"newest_entry,omitempty"`
}

// String renders the stats on one line for logs
func (s IndexStats) String() string {
	return fmt.Sprintf("%d vectors (dim %d, %s, %d unembedded)", s.VectorCount, s.Dimension, s.StorageType, s.UnembeddedCount)
}
