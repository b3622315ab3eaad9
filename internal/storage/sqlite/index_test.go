// ABOUTME: Tests for the SQLite vector index
// ABOUTME: Runs the shared backend suite plus persistence across reopen
package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/index/indextest"
	"github.com/harper/ragcore/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	ix := NewIndex(db, nil)
	ix.ownsDB = true
	return ix
}

func TestIndex_Suite(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.VectorIndex {
		return newTestIndex(t)
	})
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.db")
	cfg := index.DefaultConfig()
	cfg.Dimension = 3

	ix, err := OpenIndex(path, nil)
	if err != nil {
		t.Fatalf("OpenIndex() error = %v", err)
	}
	if err := ix.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if err := ix.AddVector(id, []float64{1, 0, 0}, indextest.Chunk(id)); err != nil {
			t.Fatalf("AddVector(%s) error = %v", id, err)
		}
	}
	if err := ix.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenIndex(path, nil)
	if err != nil {
		t.Fatalf("OpenIndex() reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if err := reopened.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() after reopen error = %v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("Count() after reopen = %d, want 2", reopened.Count())
	}
	results, err := reopened.Search([]float64{1, 0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Errorf("results after reopen = %+v", results)
	}

	cfg.Dimension = 5
	if err := reopened.Initialize(cfg); !errors.Is(err, models.ErrState) {
		t.Errorf("Initialize() with new dimension error = %v, want ErrState", err)
	}
}

func TestIndex_CollectionsAreIsolated(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	open := func(name string) *Index {
		ix := NewIndex(db, nil)
		cfg := index.DefaultConfig()
		cfg.Dimension = 2
		cfg.CollectionName = name
		if err := ix.Initialize(cfg); err != nil {
			t.Fatalf("Initialize(%s) error = %v", name, err)
		}
		return ix
	}
	left, right := open("left"), open("right")

	_ = left.AddVector("shared", []float64{1, 0}, indextest.Chunk("shared"))
	if err := right.AddVector("shared", []float64{0, 1}, indextest.Chunk("shared")); err != nil {
		t.Fatalf("same id in another collection should be allowed: %v", err)
	}
	if err := left.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if left.Count() != 0 || right.Count() != 1 {
		t.Errorf("counts = %d/%d, want 0/1", left.Count(), right.Count())
	}
}

func TestIndex_IDsByDocument(t *testing.T) {
	ix := newTestIndex(t)
	defer func() { _ = ix.Close() }()
	cfg := index.DefaultConfig()
	cfg.Dimension = 2
	_ = ix.Initialize(cfg)

	chunk := func(id, doc, source string) models.Chunk {
		return models.Chunk{ID: id, Content: id, Metadata: map[string]any{
			models.MetaDocumentID: doc,
			models.MetaSource:     source,
		}}
	}
	_ = ix.AddVectors(
		[]models.Chunk{chunk("c1", "doc_1", "a.md"), chunk("c2", "doc_2", "b.md"), chunk("c3", "doc_1", "a.md")},
		[][]float64{{1, 0}, {0, 1}, {1, 1}},
	)

	tests := []struct {
		key  string
		want []string
	}{
		{"doc_1", []string{"c1", "c3"}},
		{"b.md", []string{"c2"}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ix.IDsByDocument(tt.key)
			if err != nil {
				t.Fatalf("IDsByDocument() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("IDsByDocument(%s) = %v, want %v", tt.key, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("IDsByDocument(%s)[%d] = %s, want %s", tt.key, i, got[i], tt.want[i])
				}
			}
		})
	}
}
