// ABOUTME: Behaviour suite every VectorIndex backend must pass
// ABOUTME: Shared by the memory and SQLite backend tests
package indextest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/models"
)

// Factory returns a fresh, uninitialized backend
type Factory func(t *testing.T) index.VectorIndex

// Chunk builds a minimal chunk for id
func Chunk(id string) models.Chunk {
	return models.Chunk{
		ID:         id,
		Content:    "content of " + id,
		TokenCount: 3,
		Metadata:   map[string]any{models.MetaDocumentID: "doc_" + id},
	}
}

// RandomVector returns a deterministic pseudo-random vector
func RandomVector(seed uint64, dim int) []float64 {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	v := make([]float64, dim)
	for i := range v {
		v[i] = r.Float64()*2 - 1
	}
	return v
}

// Axis returns the unit vector along axis i
func Axis(dim, i int) []float64 {
	v := make([]float64, dim)
	v[i] = 1
	return v
}

func initialized(t *testing.T, f Factory, dim int) index.VectorIndex {
	t.Helper()
	idx := f(t)
	cfg := index.DefaultConfig()
	cfg.Dimension = dim
	if err := idx.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// Run executes the full suite against f
func Run(t *testing.T, f Factory) {
	t.Run("SearchUninitializedIsEmpty", func(t *testing.T) {
		idx := f(t)
		defer func() { _ = idx.Close() }()
		results, err := idx.Search([]float64{1, 0, 0}, 3, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		if err := idx.AddVector("a", []float64{1, 0, 0}, Chunk("a")); !errors.Is(err, models.ErrState) {
			t.Errorf("AddVector() before Initialize error = %v, want ErrState", err)
		}
	})

	t.Run("ExactMatchRanksFirst", func(t *testing.T) {
		idx := initialized(t, f, 768)
		for i, id := range []string{"a", "b", "c"} {
			if err := idx.AddVector(id, RandomVector(uint64(i+1), 768), Chunk(id)); err != nil {
				t.Fatalf("AddVector(%s) error = %v", id, err)
			}
		}

		results, err := idx.Search(RandomVector(2, 768), 1, 0.0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if results[0].ID != "b" {
			t.Errorf("top result = %s, want b", results[0].ID)
		}
		if math.Abs(results[0].Similarity-1.0) > 1e-9 {
			t.Errorf("similarity = %f, want 1.0", results[0].Similarity)
		}
		if results[0].Chunk.Content != "content of b" {
			t.Errorf("result chunk content = %q", results[0].Chunk.Content)
		}
	})

	t.Run("ThresholdAndTopK", func(t *testing.T) {
		idx := initialized(t, f, 3)
		vectors := map[string][]float64{
			"x":  {1, 0, 0},
			"xy": {1, 1, 0},
			"y":  {0, 1, 0},
			"-x": {-1, 0, 0},
		}
		for _, id := range []string{"x", "xy", "y", "-x"} {
			if err := idx.AddVector(id, vectors[id], Chunk(id)); err != nil {
				t.Fatalf("AddVector(%s) error = %v", id, err)
			}
		}

		tests := []struct {
			name      string
			topK      int
			threshold float64
			want      []string
		}{
			{"all above -1", 10, -1, []string{"x", "xy", "y", "-x"}},
			{"positive only", 10, 0.5, []string{"x", "xy"}},
			{"topK caps results", 1, -1, []string{"x"}},
			{"nothing above threshold", 5, 1.01, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				results, err := idx.Search([]float64{1, 0, 0}, tt.topK, tt.threshold)
				if err != nil {
					t.Fatalf("Search() error = %v", err)
				}
				if len(results) != len(tt.want) {
					t.Fatalf("got %d results, want %d", len(results), len(tt.want))
				}
				for i, r := range results {
					if r.ID != tt.want[i] {
						t.Errorf("result %d = %s, want %s", i, r.ID, tt.want[i])
					}
					if r.Similarity < tt.threshold {
						t.Errorf("result %s similarity %f below threshold %f", r.ID, r.Similarity, tt.threshold)
					}
				}
			})
		}
	})

	t.Run("TiesKeepInsertionOrder", func(t *testing.T) {
		idx := initialized(t, f, 2)
		for _, id := range []string{"first", "second", "third"} {
			if err := idx.AddVector(id, []float64{1, 1}, Chunk(id)); err != nil {
				t.Fatalf("AddVector(%s) error = %v", id, err)
			}
		}
		results, err := idx.Search([]float64{1, 1}, 3, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		for i, want := range []string{"first", "second", "third"} {
			if results[i].ID != want {
				t.Errorf("result %d = %s, want %s", i, results[i].ID, want)
			}
		}
	})

	t.Run("DuplicateIDsRejected", func(t *testing.T) {
		idx := initialized(t, f, 2)
		if err := idx.AddVector("dup", []float64{1, 0}, Chunk("dup")); err != nil {
			t.Fatalf("AddVector() error = %v", err)
		}
		if err := idx.AddVector("dup", []float64{0, 1}, Chunk("dup")); !errors.Is(err, models.ErrValidation) {
			t.Errorf("second AddVector() error = %v, want ErrValidation", err)
		}
		err := idx.AddVectors([]models.Chunk{Chunk("n1"), Chunk("n1")}, [][]float64{{1, 0}, {0, 1}})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("AddVectors() with in-batch duplicate error = %v, want ErrValidation", err)
		}
		if idx.Count() != 1 {
			t.Errorf("Count() = %d, want 1", idx.Count())
		}

		// Upsert is the explicit replacement path
		if err := idx.Upsert("dup", []float64{0, 1}, Chunk("dup")); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		got, err := idx.Get("dup")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Vector[1] != 1 {
			t.Errorf("Upsert did not replace vector: %v", got.Vector)
		}
		if idx.Count() != 1 {
			t.Errorf("Count() after upsert = %d, want 1", idx.Count())
		}
	})

	t.Run("BatchIsAtomic", func(t *testing.T) {
		idx := initialized(t, f, 3)
		chunks := []models.Chunk{Chunk("a"), Chunk("b"), Chunk("c")}
		vectors := [][]float64{{1, 0, 0}, {0, 1}, {0, 0, 1}}
		if err := idx.AddVectors(chunks, vectors); !errors.Is(err, models.ErrValidation) {
			t.Fatalf("AddVectors() error = %v, want ErrValidation", err)
		}
		if idx.Count() != 0 {
			t.Errorf("Count() = %d after rejected batch, want 0", idx.Count())
		}

		vectors[1] = []float64{0, 1, 0}
		if err := idx.AddVectors(chunks, vectors); err != nil {
			t.Fatalf("AddVectors() error = %v", err)
		}
		if idx.Count() != 3 {
			t.Errorf("Count() = %d, want 3", idx.Count())
		}
		if err := idx.AddVectors(chunks[:1], vectors); !errors.Is(err, models.ErrValidation) {
			t.Errorf("AddVectors() with length mismatch error = %v, want ErrValidation", err)
		}
	})

	t.Run("DimensionMismatchRejected", func(t *testing.T) {
		idx := initialized(t, f, 4)
		if err := idx.AddVector("short", []float64{1, 2}, Chunk("short")); !errors.Is(err, models.ErrValidation) {
			t.Errorf("AddVector() error = %v, want ErrValidation", err)
		}
		if _, err := idx.Search([]float64{1, 2}, 1, 0); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Search() with wrong dimension error = %v, want ErrValidation", err)
		}
		if _, err := idx.Search([]float64{1, 2, 3, 4}, 0, 0); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Search() with top_k 0 error = %v, want ErrValidation", err)
		}
	})

	t.Run("UnembeddedExcludedFromSearch", func(t *testing.T) {
		idx := initialized(t, f, 2)
		pending := Chunk("pending").WithMetadata(models.MetaUnembedded, true)
		if err := idx.AddVectors([]models.Chunk{Chunk("real"), pending}, [][]float64{{1, 0}, nil}); err != nil {
			t.Fatalf("AddVectors() error = %v", err)
		}
		results, err := idx.Search([]float64{1, 0}, 5, -1)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 1 || results[0].ID != "real" {
			t.Fatalf("expected only the embedded entry, got %+v", results)
		}
		if stats := idx.Stats(); stats.UnembeddedCount != 1 {
			t.Errorf("UnembeddedCount = %d, want 1", stats.UnembeddedCount)
		}

		if err := idx.UpdateVector("pending", []float64{0.5, 0.5}, nil); err != nil {
			t.Fatalf("UpdateVector() error = %v", err)
		}
		results, err = idx.Search([]float64{1, 0}, 5, -1)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 2 {
			t.Errorf("expected 2 results after embedding, got %d", len(results))
		}
	})

	t.Run("UpdateAndRemove", func(t *testing.T) {
		idx := initialized(t, f, 2)
		for _, id := range []string{"a", "b", "c"} {
			if err := idx.AddVector(id, []float64{1, 0}, Chunk(id)); err != nil {
				t.Fatalf("AddVector(%s) error = %v", id, err)
			}
		}

		if err := idx.UpdateVector("b", nil, map[string]any{"tag": "updated"}); err != nil {
			t.Fatalf("UpdateVector() error = %v", err)
		}
		got, err := idx.Get("b")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Chunk.MetaString("tag") != "updated" {
			t.Errorf("metadata not updated: %v", got.Chunk.Metadata)
		}
		if got.Vector[0] != 1 {
			t.Errorf("nil vector should keep the stored vector, got %v", got.Vector)
		}
		if err := idx.UpdateVector("missing", []float64{1, 0}, nil); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("UpdateVector(missing) error = %v, want ErrNotFound", err)
		}

		if err := idx.RemoveVector("a"); err != nil {
			t.Fatalf("RemoveVector() error = %v", err)
		}
		if idx.Has("a") {
			t.Error("Has(a) = true after removal")
		}
		if err := idx.RemoveVector("a"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("second RemoveVector() error = %v, want ErrNotFound", err)
		}
		n, err := idx.RemoveVectors([]string{"b", "zzz"})
		if err != nil {
			t.Fatalf("RemoveVectors() error = %v", err)
		}
		if n != 1 {
			t.Errorf("RemoveVectors() removed %d, want 1", n)
		}
		if idx.Count() != 1 || !idx.Has("c") {
			t.Errorf("expected only c to remain, count = %d", idx.Count())
		}
		if _, err := idx.Get("a"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Get(a) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		idx := initialized(t, f, 2)
		if err := idx.AddVector("a", []float64{1, 0}, Chunk("a")); err != nil {
			t.Fatalf("AddVector() error = %v", err)
		}
		got, _ := idx.Get("a")
		got.Vector[0] = 42
		got.Chunk.Metadata["extra"] = true

		again, _ := idx.Get("a")
		if again.Vector[0] != 1 {
			t.Error("mutating a returned vector changed the index")
		}
		if _, ok := again.Chunk.Metadata["extra"]; ok {
			t.Error("mutating returned metadata changed the index")
		}
	})

	t.Run("ClearKeepsConfig", func(t *testing.T) {
		idx := initialized(t, f, 2)
		_ = idx.AddVector("a", []float64{1, 0}, Chunk("a"))
		if err := idx.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if idx.Count() != 0 {
			t.Errorf("Count() = %d after Clear, want 0", idx.Count())
		}
		if err := idx.AddVector("a", []float64{1, 0}, Chunk("a")); err != nil {
			t.Errorf("AddVector() after Clear error = %v", err)
		}
	})

	t.Run("Capacity", func(t *testing.T) {
		idx := f(t)
		defer func() { _ = idx.Close() }()
		cfg := index.DefaultConfig()
		cfg.Dimension = 2
		cfg.MaxElements = 2
		if err := idx.Initialize(cfg); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		err := idx.AddVectors(
			[]models.Chunk{Chunk("a"), Chunk("b"), Chunk("c")},
			[][]float64{{1, 0}, {0, 1}, {1, 1}},
		)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("AddVectors() past capacity error = %v, want ErrValidation", err)
		}
		if idx.Count() != 0 {
			t.Errorf("Count() = %d, want 0", idx.Count())
		}
	})

	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		idx := initialized(t, f, 16)
		var chunks []models.Chunk
		var vectors [][]float64
		for i := 0; i < 12; i++ {
			id := fmt.Sprintf("chunk_%02d", i)
			chunks = append(chunks, Chunk(id))
			vectors = append(vectors, RandomVector(uint64(100+i), 16))
		}
		chunks = append(chunks, Chunk("pending").WithMetadata(models.MetaUnembedded, true))
		vectors = append(vectors, nil)
		if err := idx.AddVectors(chunks, vectors); err != nil {
			t.Fatalf("AddVectors() error = %v", err)
		}

		path := filepath.Join(t.TempDir(), "kb", "index.json")
		if err := idx.Save(path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		fresh := f(t)
		defer func() { _ = fresh.Close() }()
		if err := fresh.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if fresh.Count() != idx.Count() {
			t.Fatalf("Count() after load = %d, want %d", fresh.Count(), idx.Count())
		}
		if fresh.Config().Dimension != 16 {
			t.Errorf("Dimension after load = %d, want 16", fresh.Config().Dimension)
		}

		query := RandomVector(7, 16)
		before, _ := idx.Search(query, 12, 0)
		after, _ := fresh.Search(query, 12, 0)
		if len(before) != len(after) {
			t.Fatalf("result count changed: %d vs %d", len(before), len(after))
		}
		for i := range before {
			if before[i].ID != after[i].ID {
				t.Errorf("result %d: %s before save, %s after load", i, before[i].ID, after[i].ID)
			}
		}
		pending, err := fresh.Get("pending")
		if err != nil {
			t.Fatalf("Get(pending) error = %v", err)
		}
		if !pending.Chunk.IsUnembedded() {
			t.Error("unembedded flag should survive a round trip")
		}
	})

	t.Run("StreamRoundTrip", func(t *testing.T) {
		idx := initialized(t, f, 8)
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("s%d", i)
			if err := idx.AddVector(id, RandomVector(uint64(300+i), 8), Chunk(id)); err != nil {
				t.Fatalf("AddVector() error = %v", err)
			}
		}

		var buf bytes.Buffer
		if err := idx.SaveTo(&buf); err != nil {
			t.Fatalf("SaveTo() error = %v", err)
		}
		snap, err := index.ReadSnapshot(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("SaveTo() wrote an unreadable snapshot: %v", err)
		}
		if len(snap.Vectors) != 5 || snap.Config.Dimension != 8 {
			t.Errorf("snapshot has %d vectors of dimension %d", len(snap.Vectors), snap.Config.Dimension)
		}

		fresh := f(t)
		defer func() { _ = fresh.Close() }()
		if err := fresh.LoadFrom(bytes.NewReader(buf.Bytes())); err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		if fresh.Count() != 5 || !fresh.Has("s3") {
			t.Errorf("LoadFrom() restored %d vectors", fresh.Count())
		}

		if err := fresh.LoadFrom(bytes.NewReader([]byte(`{"vectors": "nope"}`))); !errors.Is(err, models.ErrValidation) {
			t.Errorf("LoadFrom(invalid) error = %v, want ErrValidation", err)
		}
		if fresh.Count() != 5 {
			t.Error("failed LoadFrom must leave the index untouched")
		}

		empty := f(t)
		defer func() { _ = empty.Close() }()
		if err := empty.SaveTo(&bytes.Buffer{}); !errors.Is(err, models.ErrState) {
			t.Errorf("SaveTo() on uninitialized index error = %v, want ErrState", err)
		}
	})

	t.Run("LoadDimensionMismatch", func(t *testing.T) {
		src := initialized(t, f, 3)
		_ = src.AddVector("a", []float64{1, 0, 0}, Chunk("a"))
		path := filepath.Join(t.TempDir(), "index.json")
		if err := src.Save(path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		dst := initialized(t, f, 4)
		_ = dst.AddVector("keep", []float64{1, 0, 0, 0}, Chunk("keep"))
		if err := dst.Load(path); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Load() error = %v, want ErrValidation", err)
		}
		if !dst.Has("keep") || dst.Count() != 1 {
			t.Error("failed load must leave the index untouched")
		}
		if err := dst.Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ConcurrentSearchAndWrite", func(t *testing.T) {
		idx := initialized(t, f, 8)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					id := fmt.Sprintf("w%d_%d", w, i)
					if err := idx.AddVector(id, RandomVector(uint64(w*100+i+1), 8), Chunk(id)); err != nil {
						t.Errorf("AddVector(%s) error = %v", id, err)
					}
				}
			}(w)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					if _, err := idx.Search(RandomVector(uint64(w+9000), 8), 5, -1); err != nil {
						t.Errorf("Search() error = %v", err)
					}
				}
			}(w)
		}
		wg.Wait()
		if idx.Count() != 80 {
			t.Errorf("Count() = %d, want 80", idx.Count())
		}
	})
}
