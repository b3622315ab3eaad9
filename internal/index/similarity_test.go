// ABOUTME: Tests for similarity functions and ranking
// ABOUTME: Verifies cosine edge cases and stable top-K selection
package index

import (
	"math"
	"testing"

	"github.com/harper/ragcore/internal/models"
)

func abs(x float64) float64 {
	return math.Abs(x)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float64
		b        []float64
		expected float64
		delta    float64
	}{
		{"identical vectors", []float64{1, 0, 0}, []float64{1, 0, 0}, 1.0, 0.0001},
		{"orthogonal vectors", []float64{1, 0, 0}, []float64{0, 1, 0}, 0.0, 0.0001},
		{"opposite vectors", []float64{1, 0, 0}, []float64{-1, 0, 0}, -1.0, 0.0001},
		{"scaled vectors", []float64{1, 2, 3}, []float64{2, 4, 6}, 1.0, 0.0001},
		{"zero vector", []float64{0, 0, 0}, []float64{1, 2, 3}, 0.0, 0.0},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0.0, 0.0},
		{"45 degrees", []float64{1, 0}, []float64{1, 1}, 1 / math.Sqrt2, 0.0001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity() = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestRank_NeverExceedsTopK(t *testing.T) {
	var entries []models.VectorEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, models.VectorEntry{
			ID:     string(rune('a' + i)),
			Vector: []float64{1, float64(i) / 10},
		})
	}

	for topK := 1; topK <= 12; topK++ {
		results := Rank(MetricCosine, []float64{1, 0}, entries, topK, 0.9)
		if len(results) > topK {
			t.Errorf("topK %d: got %d results", topK, len(results))
		}
		for _, r := range results {
			if r.Similarity < 0.9 {
				t.Errorf("result %s below threshold: %f", r.ID, r.Similarity)
			}
		}
	}
}

func TestRank_ResultsDoNotAliasEntries(t *testing.T) {
	entries := []models.VectorEntry{{
		ID:     "a",
		Vector: []float64{1, 0},
		Chunk:  models.Chunk{ID: "a", Metadata: map[string]any{"k": "v"}},
	}}
	results := Rank(MetricCosine, []float64{1, 0}, entries, 1, 0)
	results[0].Chunk.Metadata["k"] = "changed"
	if entries[0].Chunk.Metadata["k"] != "v" {
		t.Error("result metadata aliases the stored entry")
	}
}
