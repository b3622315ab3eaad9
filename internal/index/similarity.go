// ABOUTME: Similarity functions and exact top-K ranking over stored entries
// ABOUTME: Ties keep insertion order; unembedded placeholders never match
package index

import (
	"math"
	"sort"

	"github.com/harper/ragcore/internal/models"
)

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is 0
// or the lengths differ
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct returns the inner product of a and b, or 0 when lengths differ
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Score applies the metric to a pair of vectors
func Score(metric Metric, a, b []float64) float64 {
	if metric == MetricDot {
		return DotProduct(a, b)
	}
	return CosineSimilarity(a, b)
}

// Rank scores every entry against query, drops scores below threshold and
// unembedded entries, sorts descending (stable, so earlier inserts win ties)
// and returns at most topK results. entries must be in insertion order.
func Rank(metric Metric, query []float64, entries []models.VectorEntry, topK int, threshold float64) []models.SearchResult {
	results := make([]models.SearchResult, 0, min(topK, len(entries)))
	for i := range entries {
		e := &entries[i]
		if e.Chunk.IsUnembedded() {
			continue
		}
		score := Score(metric, query, e.Vector)
		if score < threshold {
			continue
		}
		results = append(results, models.SearchResult{ID: e.ID, Similarity: score, Chunk: e.Chunk})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Chunk = results[i].Chunk.Clone()
	}
	return results
}

// CheckQuery validates search arguments
func CheckQuery(cfg Config, query []float64, topK int) error {
	if topK < 1 {
		return models.Validationf("top_k must be >= 1, got %d", topK)
	}
	return models.ValidateVector(query, cfg.Dimension)
}
