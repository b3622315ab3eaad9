// ABOUTME: Tests for snapshot encoding and validation
// ABOUTME: Covers schema failures, duplicate ids and unembedded placeholders
package index

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harper/ragcore/internal/models"
)

func TestWriteSnapshot_EmptyIndexWritesArray(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Dimension = 3
	if err := WriteSnapshot(&buf, cfg, StorageMemory, nil); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"vectors": []`) {
		t.Errorf("expected empty vectors array, got %s", buf.String())
	}

	snap, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	if snap.Config.Dimension != 3 || snap.Config.Version != SnapshotVersion {
		t.Errorf("header = %+v", snap.Config)
	}
	if len(snap.Vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(snap.Vectors))
	}
}

func TestWriteSnapshot_RoundTripPreservesOrderAndChunks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dimension = 2
	inserted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.VectorEntry{
		{ID: "z", Vector: []float64{1, 0}, InsertedAt: inserted, Chunk: models.Chunk{
			ID: "z", Content: "last letter", SequenceIndex: 0, TokenCount: 2,
			Metadata: map[string]any{models.MetaSource: "a.txt"},
		}},
		{ID: "a", Vector: []float64{0.5, -0.25}, InsertedAt: inserted, Chunk: models.Chunk{
			ID: "a", Content: "first letter", SequenceIndex: 1, TokenCount: 2,
		}},
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, cfg, StorageMemory, entries); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	snap, err := ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}

	if len(snap.Vectors) != 2 || snap.Vectors[0].ID != "z" || snap.Vectors[1].ID != "a" {
		t.Fatalf("order not preserved: %+v", snap.Vectors)
	}
	got := snap.Vectors[1]
	if got.Vector[1] != -0.25 || got.Chunk.SequenceIndex != 1 || got.Chunk.Content != "first letter" {
		t.Errorf("entry not preserved: %+v", got)
	}
	if snap.Vectors[0].Chunk.MetaString(models.MetaSource) != "a.txt" {
		t.Errorf("metadata not preserved: %v", snap.Vectors[0].Chunk.Metadata)
	}
	if !snap.Vectors[0].InsertedAt.Equal(inserted) {
		t.Errorf("timestamp = %v, want %v", snap.Vectors[0].InsertedAt, inserted)
	}
	if snap.Config.Metric != MetricCosine {
		t.Errorf("metric = %q, want cosine", snap.Config.Metric)
	}
}

func TestReadSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{{`},
		{"missing config", `{"vectors": []}`},
		{"missing vectors", `{"config": {"vector_dimension": 2, "version": "1.0"}}`},
		{"zero dimension", `{"config": {"vector_dimension": 0, "version": "1.0"}, "vectors": []}`},
		{"unknown version", `{"config": {"vector_dimension": 2, "version": "9.9"}, "vectors": []}`},
		{"unknown metric", `{"config": {"vector_dimension": 2, "version": "1.0", "metric": "l1"}, "vectors": []}`},
		{"vector of strings", `{"config": {"vector_dimension": 2, "version": "1.0"}, "vectors": [
			{"id": "a", "vector": ["x", "y"], "chunk": {"chunk_id": "a", "content": "c"}}]}`},
		{"missing chunk", `{"config": {"vector_dimension": 2, "version": "1.0"}, "vectors": [
			{"id": "a", "vector": [1, 0]}]}`},
		{"wrong dimension", `{"config": {"vector_dimension": 2, "version": "1.0"}, "vectors": [
			{"id": "a", "vector": [1, 0, 0], "chunk": {"chunk_id": "a", "content": "c"}}]}`},
		{"duplicate ids", `{"config": {"vector_dimension": 2, "version": "1.0"}, "vectors": [
			{"id": "a", "vector": [1, 0], "chunk": {"chunk_id": "a", "content": "c"}},
			{"id": "a", "vector": [0, 1], "chunk": {"chunk_id": "a", "content": "d"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSnapshot(strings.NewReader(tt.doc))
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("ReadSnapshot() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestReadSnapshot_UnembeddedGetsPlaceholder(t *testing.T) {
	doc := `{"config": {"vector_dimension": 4, "version": "1.0"}, "vectors": [
		{"id": "p", "vector": [], "chunk": {"chunk_id": "p", "content": "later", "metadata": {"unembedded": true}}}]}`
	snap, err := ReadSnapshot(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	if len(snap.Vectors[0].Vector) != 4 {
		t.Errorf("placeholder length = %d, want 4", len(snap.Vectors[0].Vector))
	}
}

func TestConfigFor(t *testing.T) {
	current := DefaultConfig()
	current.Dimension = 8
	current.Metric = MetricDot

	cfg, err := ConfigFor(current, false, SnapshotHeader{Dimension: 3, Metric: MetricCosine})
	if err != nil {
		t.Fatalf("ConfigFor() uninitialized error = %v", err)
	}
	if cfg.Dimension != 3 || cfg.Metric != MetricCosine {
		t.Errorf("uninitialized index should adopt the header, got %+v", cfg)
	}

	cfg, err = ConfigFor(current, true, SnapshotHeader{Dimension: 8, Metric: MetricCosine})
	if err != nil {
		t.Fatalf("ConfigFor() matching error = %v", err)
	}
	if cfg.Metric != MetricDot {
		t.Errorf("initialized index should keep its metric, got %q", cfg.Metric)
	}

	if _, err := ConfigFor(current, true, SnapshotHeader{Dimension: 3}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ConfigFor() mismatch error = %v, want ErrValidation", err)
	}
}
