// ABOUTME: Tests for retrieval and keyword reranking
// ABOUTME: Uses the in-memory index with a scripted embedding provider
package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/models"
)

// scriptedProvider returns fixed vectors per text, or err for every call
type scriptedProvider struct {
	vectors map[string][]float64
	err     error
}

func (s *scriptedProvider) Embed(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func (s *scriptedProvider) EmbedMany(ctx context.Context, texts []string) []embedding.Result {
	out := make([]embedding.Result, len(texts))
	for i, t := range texts {
		out[i].Vector, out[i].Err = s.Embed(ctx, t)
	}
	return out
}

func (s *scriptedProvider) Dimension() int { return 3 }

func newIndex(t *testing.T, entries map[string][]float64, contents map[string]string, order []string) index.VectorIndex {
	t.Helper()
	idx := index.NewMemoryIndex(nil)
	cfg := index.DefaultConfig()
	cfg.Dimension = 3
	if err := idx.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	for _, id := range order {
		ch := models.Chunk{ID: id, Content: contents[id], TokenCount: 1}
		if err := idx.AddVector(id, entries[id], ch); err != nil {
			t.Fatalf("AddVector(%s) error = %v", id, err)
		}
	}
	return idx
}

func ids(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRetrieve(t *testing.T) {
	idx := newIndex(t,
		map[string][]float64{"near": {1, 0.1, 0}, "mid": {1, 1, 0}, "far": {0, 1, 0}},
		map[string]string{"near": "alpha", "mid": "beta", "far": "gamma"},
		[]string{"far", "mid", "near"},
	)
	provider := &scriptedProvider{vectors: map[string][]float64{"question": {1, 0, 0}}}

	tests := []struct {
		name      string
		threshold float64
		topK      int
		want      []string
	}{
		{"all ranked", -1, 3, []string{"near", "mid", "far"}},
		{"threshold filters", 0.5, 3, []string{"near", "mid"}},
		{"top_k caps", -1, 1, []string{"near"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(idx, provider, Options{Threshold: tt.threshold}, nil)
			results, err := r.Retrieve(context.Background(), "question", tt.topK)
			if err != nil {
				t.Fatalf("Retrieve() error = %v", err)
			}
			if got := ids(results); !equal(got, tt.want) {
				t.Errorf("Retrieve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrieve_Errors(t *testing.T) {
	idx := newIndex(t, nil, nil, nil)
	ctx := context.Background()

	r := New(idx, &scriptedProvider{}, Options{}, nil)
	if _, err := r.Retrieve(ctx, "  ", 3); !errors.Is(err, models.ErrEmptyInput) {
		t.Errorf("Retrieve(blank) error = %v, want ErrEmptyInput", err)
	}
	if _, err := r.Retrieve(ctx, "q", 0); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Retrieve(top_k 0) error = %v, want ErrValidation", err)
	}

	failing := New(idx, &scriptedProvider{err: errors.New("provider down")}, Options{}, nil)
	if _, err := failing.Retrieve(ctx, "q", 3); !errors.Is(err, models.ErrEmbeddingFailed) {
		t.Errorf("Retrieve() with failing provider error = %v, want ErrEmbeddingFailed", err)
	}

	cancelled := New(idx, &scriptedProvider{err: context.Canceled}, Options{}, nil)
	if _, err := cancelled.Retrieve(ctx, "q", 3); !errors.Is(err, models.ErrCancelled) {
		t.Errorf("Retrieve() cancelled error = %v, want ErrCancelled", err)
	}
}

func TestRetrieve_EmptyIndexReturnsNothing(t *testing.T) {
	idx := newIndex(t, nil, nil, nil)
	r := New(idx, &scriptedProvider{}, Options{Threshold: 0.7, UseReranking: true}, nil)
	results, err := r.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", ids(results))
	}
}

func TestRetrieve_RerankReordersOnly(t *testing.T) {
	idx := newIndex(t,
		map[string][]float64{"a": {1, 0, 0}, "b": {1, 0.2, 0}, "c": {1, 0.4, 0}},
		map[string]string{"a": "nothing relevant", "b": "goroutine scheduling", "c": "goroutine goroutine scheduler"},
		[]string{"a", "b", "c"},
	)
	provider := &scriptedProvider{vectors: map[string][]float64{"Goroutine?": {1, 0, 0}}}
	r := New(idx, provider, Options{Threshold: -1, UseReranking: true}, nil)

	results, err := r.Retrieve(context.Background(), "Goroutine?", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got := ids(results); !equal(got, []string{"c", "b", "a"}) {
		t.Errorf("reranked = %v, want [c b a]", got)
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("  What is a GOROUTINE?  what, (goroutine) ")
	want := []string{"what", "is", "a", "goroutine"}
	if !equal(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
	if len(Keywords("?! ...")) != 0 {
		t.Error("punctuation-only query should have no keywords")
	}
}

func TestRerank_HitsFirst(t *testing.T) {
	results := []models.SearchResult{
		{ID: "sim-high", Similarity: 0.95, Chunk: models.Chunk{Content: "vectors"}},
		{ID: "one-hit", Similarity: 0.80, Chunk: models.Chunk{Content: "the cache layer"}},
		{ID: "two-hits-low", Similarity: 0.71, Chunk: models.Chunk{Content: "cache warm cache"}},
		{ID: "two-hits-high", Similarity: 0.75, Chunk: models.Chunk{Content: "cache and CACHE"}},
		{ID: "one-hit-tie", Similarity: 0.80, Chunk: models.Chunk{Content: "a cache"}},
	}

	got := ids(Rerank("cache", results, 0))
	want := []string{"two-hits-high", "two-hits-low", "one-hit", "one-hit-tie", "sim-high"}
	if !equal(got, want) {
		t.Errorf("Rerank() = %v, want %v", got, want)
	}
	if results[0].ID != "sim-high" {
		t.Error("Rerank must not modify its input")
	}
}

func TestRerank_Blended(t *testing.T) {
	results := []models.SearchResult{
		{ID: "similar", Similarity: 0.95, Chunk: models.Chunk{Content: "unrelated words"}},
		{ID: "keyword", Similarity: 0.80, Chunk: models.Chunk{Content: "index tuning guide"}},
	}

	tests := []struct {
		name   string
		weight float64
		want   []string
	}{
		// 0.80 + 0.1*1/2 = 0.85 < 0.95
		{"small weight keeps similarity order", 0.1, []string{"similar", "keyword"}},
		// 0.80 + 0.5*1/2 = 1.05 > 0.95
		{"large weight promotes keyword match", 0.5, []string{"keyword", "similar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Rerank("index speed", results, tt.weight))
			if !equal(got, tt.want) {
				t.Errorf("Rerank() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRerank_NoKeywordsKeepsOrder(t *testing.T) {
	results := []models.SearchResult{{ID: "x", Similarity: 0.1}, {ID: "y", Similarity: 0.9}}
	if got := ids(Rerank("???", results, 0)); !equal(got, []string{"x", "y"}) {
		t.Errorf("Rerank() = %v, want original order", got)
	}
}
