// ABOUTME: Deterministic feature-hashing embedder for offline use and tests
// ABOUTME: Texts sharing words get similar vectors without any network call
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/harper/ragcore/internal/models"
)

// HashProvider maps lowercase word and CJK-rune features into a fixed number
// of buckets and L2-normalizes the result
type HashProvider struct {
	dim int
}

// NewHashProvider creates a hashing embedder of the given dimension
func NewHashProvider(dim int) *HashProvider {
	if dim < 1 {
		dim = 1
	}
	return &HashProvider{dim: dim}
}

// Dimension returns the vector length
func (h *HashProvider) Dimension() int {
	return h.dim
}

// Embed hashes text into a vector
func (h *HashProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}

	v := make([]float64, h.dim)
	for _, f := range features(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(f))
		sum := hasher.Sum64()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1.0
		}
		v[(sum>>1)%uint64(h.dim)] += sign
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}

// EmbedMany embeds each text in turn
func (h *HashProvider) EmbedMany(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	for i, t := range texts {
		results[i].Vector, results[i].Err = h.Embed(ctx, t)
	}
	return results
}

// features returns lowercase alphanumeric words plus each CJK rune on its own
func features(text string) []string {
	var out []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

var _ Provider = (*HashProvider)(nil)
