// ABOUTME: Tests for knowledge base export
// ABOUTME: Verifies document grouping plus YAML and Markdown output
package index_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/models"
	"gopkg.in/yaml.v3"
)

func exportFixture(t *testing.T) index.VectorIndex {
	t.Helper()
	idx := index.NewMemoryIndex(nil)
	cfg := index.DefaultConfig()
	cfg.Dimension = 2
	if err := idx.Initialize(cfg); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	chunk := func(id, doc string, seq int) models.Chunk {
		return models.Chunk{
			ID:            id,
			Content:       "text of " + id,
			SequenceIndex: seq,
			TokenCount:    3,
			Metadata: map[string]any{
				models.MetaDocumentID: doc,
				models.MetaSource:     doc + ".md",
			},
		}
	}
	// Out of order on purpose
	_ = idx.AddVector("b1", []float64{1, 0}, chunk("b1", "beta", 1))
	_ = idx.AddVector("a0", []float64{0, 1}, chunk("a0", "alpha", 0))
	_ = idx.AddVector("b0", []float64{1, 1}, chunk("b0", "beta", 0))
	pending := chunk("a1", "alpha", 1).WithMetadata(models.MetaUnembedded, true)
	_ = idx.AddVectors([]models.Chunk{pending}, [][]float64{nil})
	return idx
}

func TestExport_GroupsByDocument(t *testing.T) {
	data := index.Export(exportFixture(t))

	if len(data.Documents) != 2 {
		t.Fatalf("Documents = %d, want 2", len(data.Documents))
	}
	beta := data.Documents[0]
	if beta.DocumentID != "beta" || beta.Source != "beta.md" {
		t.Errorf("first document = %+v, want beta", beta)
	}
	if beta.Chunks[0].ChunkID != "b0" || beta.Chunks[1].ChunkID != "b1" {
		t.Errorf("chunks not sorted by index: %+v", beta.Chunks)
	}
	if len(data.Pending) != 1 || data.Pending[0].ChunkID != "a1" {
		t.Errorf("Pending = %+v, want [a1]", data.Pending)
	}
	if data.Dimension != 2 || data.StorageType != index.StorageMemory {
		t.Errorf("header = %+v", data)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := index.WriteYAML(&buf, index.Export(exportFixture(t))); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}

	var parsed index.ExportData
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if parsed.Tool != "ragcore" {
		t.Errorf("Tool = %q, want ragcore", parsed.Tool)
	}
	if len(parsed.Documents) != 2 {
		t.Errorf("Documents = %d, want 2", len(parsed.Documents))
	}
}

func TestExportToFile(t *testing.T) {
	idx := exportFixture(t)
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "out", "kb.md")
	if err := index.ExportToFile(idx, mdPath, "markdown"); err != nil {
		t.Fatalf("ExportToFile(markdown) error = %v", err)
	}
	content, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"# Knowledge Base Export", "## beta.md", "text of b0", "## Pending Embedding"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	if err := index.ExportToFile(idx, filepath.Join(dir, "kb.yaml"), "yaml"); err != nil {
		t.Errorf("ExportToFile(yaml) error = %v", err)
	}
	if err := index.ExportToFile(idx, filepath.Join(dir, "kb.csv"), "csv"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("ExportToFile(csv) error = %v, want ErrValidation", err)
	}
}
