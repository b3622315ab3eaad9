// ABOUTME: Deterministic keyword rerank over vector search candidates
// ABOUTME: Keyword hits lead, similarity breaks ties, or both blend when weighted
package retriever

import (
	"sort"
	"strings"
	"unicode"

	"github.com/harper/ragcore/internal/models"
)

// Keywords splits query on whitespace, lowercases each word, trims surrounding
// punctuation and drops duplicates
func Keywords(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		kw := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// KeywordHits counts case-insensitive occurrences of keywords in content
func KeywordHits(content string, keywords []string) int {
	lower := strings.ToLower(content)
	hits := 0
	for _, kw := range keywords {
		hits += strings.Count(lower, kw)
	}
	return hits
}

// Rerank reorders results by keyword evidence. With weight 0 the keyword hit
// count is the primary key and similarity the tie-breaker; with weight > 0
// the key is similarity + weight*hits/len(keywords). Remaining ties keep the
// original rank. The input slice is not modified.
func Rerank(query string, results []models.SearchResult, weight float64) []models.SearchResult {
	keywords := Keywords(query)
	out := append([]models.SearchResult(nil), results...)
	if len(keywords) == 0 {
		return out
	}

	hits := make([]int, len(out))
	score := make([]float64, len(out))
	for i, r := range out {
		hits[i] = KeywordHits(r.Chunk.Content, keywords)
		score[i] = r.Similarity + weight*float64(hits[i])/float64(len(keywords))
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if weight > 0 {
			return score[i] > score[j]
		}
		if hits[i] != hits[j] {
			return hits[i] > hits[j]
		}
		return out[i].Similarity > out[j].Similarity
	})

	ranked := make([]models.SearchResult, len(out))
	for k, i := range order {
		ranked[k] = out[i]
	}
	return ranked
}
