// ABOUTME: Embedding provider boundary turning text into fixed-dimension vectors
// ABOUTME: Implemented by the OpenAI-compatible client and a deterministic local hasher
package embedding

import (
	"context"
)

// Result is the outcome of embedding one text in a batch
type Result struct {
	Vector []float64
	Err    error
}

// Provider embeds text. EmbedMany returns one Result per input, in input order.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedMany(ctx context.Context, texts []string) []Result
	Dimension() int
}

// Vectors splits results into vectors and the first error. Failed entries are nil.
func Vectors(results []Result) ([][]float64, error) {
	vectors := make([][]float64, len(results))
	var first error
	for i, r := range results {
		if r.Err != nil {
			if first == nil {
				first = r.Err
			}
			continue
		}
		vectors[i] = r.Vector
	}
	return vectors, first
}
