// ABOUTME: Human-readable export of an index's chunks
// ABOUTME: Supports YAML and Markdown output grouped by source document
package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harper/ragcore/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData is the complete exportable view of a knowledge base. Vectors are
// left out; use Save for a reloadable snapshot.
type ExportData struct {
	Version     string        `yaml:"version" json:"version"`
	ExportedAt  string        `yaml:"exported_at" json:"exported_at"`
	Tool        string        `yaml:"tool" json:"tool"`
	StorageType string        `yaml:"storage_type" json:"storage_type"`
	Dimension   int           `yaml:"vector_dimension" json:"vector_dimension"`
	Metric      string        `yaml:"metric" json:"metric"`
	Documents   []ExportDoc   `yaml:"documents" json:"documents"`
	Pending     []ExportChunk `yaml:"pending,omitempty" json:"pending,omitempty"`
}

// ExportDoc groups the chunks of one source document
type ExportDoc struct {
	DocumentID string        `yaml:"document_id" json:"document_id"`
	Source     string        `yaml:"source,omitempty" json:"source,omitempty"`
	Chunks     []ExportChunk `yaml:"chunks" json:"chunks"`
}

// ExportChunk is one chunk without its vector
type ExportChunk struct {
	ChunkID    string         `yaml:"chunk_id" json:"chunk_id"`
	Index      int            `yaml:"chunk_index" json:"chunk_index"`
	TokenCount int            `yaml:"token_count" json:"token_count"`
	Content    string         `yaml:"content" json:"content"`
	Metadata   map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	InsertedAt string         `yaml:"inserted_at" json:"inserted_at"`
}

// Export collects every entry of idx, grouped by document in first-seen order
// with chunks sorted by sequence index. Unembedded chunks are listed again
// under Pending.
func Export(idx VectorIndex) *ExportData {
	stats := idx.Stats()
	data := &ExportData{
		Version:     SnapshotVersion,
		ExportedAt:  time.Now().Format(time.RFC3339),
		Tool:        "ragcore",
		StorageType: stats.StorageType,
		Dimension:   stats.Dimension,
		Metric:      stats.Metric,
		Documents:   []ExportDoc{},
	}

	pos := map[string]int{}
	for _, e := range idx.Entries() {
		ch := ExportChunk{
			ChunkID:    e.Chunk.ID,
			Index:      e.Chunk.SequenceIndex,
			TokenCount: e.Chunk.TokenCount,
			Content:    e.Chunk.Content,
			Metadata:   e.Chunk.Metadata,
			InsertedAt: e.InsertedAt.Format(time.RFC3339),
		}

		docID := e.Chunk.MetaString(models.MetaDocumentID)
		if docID == "" {
			docID = e.ID
		}
		i, ok := pos[docID]
		if !ok {
			i = len(data.Documents)
			pos[docID] = i
			data.Documents = append(data.Documents, ExportDoc{
				DocumentID: docID,
				Source:     e.Chunk.MetaString(models.MetaSource),
			})
		}
		data.Documents[i].Chunks = append(data.Documents[i].Chunks, ch)

		if e.Chunk.IsUnembedded() {
			data.Pending = append(data.Pending, ch)
		}
	}

	for i := range data.Documents {
		chunks := data.Documents[i].Chunks
		sort.SliceStable(chunks, func(a, b int) bool { return chunks[a].Index < chunks[b].Index })
	}
	return data
}

// WriteYAML encodes data as YAML
func WriteYAML(w io.Writer, data *ExportData) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteMarkdown renders data as a Markdown document
func WriteMarkdown(w io.Writer, data *ExportData) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Knowledge Base Export - %s\n\n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Generated: %s\n\n", data.ExportedAt)
	fmt.Fprintf(&b, "- **Storage:** %s\n", data.StorageType)
	fmt.Fprintf(&b, "- **Dimension:** %d\n", data.Dimension)
	fmt.Fprintf(&b, "- **Documents:** %d\n\n", len(data.Documents))

	for _, doc := range data.Documents {
		title := doc.Source
		if title == "" {
			title = doc.DocumentID
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		for _, ch := range doc.Chunks {
			fmt.Fprintf(&b, "### Chunk %d (%d tokens)\n\n", ch.Index, ch.TokenCount)
			b.WriteString(ch.Content)
			b.WriteString("\n\n")
		}
		b.WriteString("---\n\n")
	}

	if len(data.Pending) > 0 {
		b.WriteString("## Pending Embedding\n\n")
		for _, ch := range data.Pending {
			fmt.Fprintf(&b, "- %s\n", ch.ChunkID)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExportToFile writes an export to path; format is "yaml" or "markdown"
func ExportToFile(idx VectorIndex, path, format string) error {
	var write func(io.Writer, *ExportData) error
	switch format {
	case "yaml", "yml", "":
		write = WriteYAML
	case "markdown", "md":
		write = WriteMarkdown
	default:
		return models.Validationf("unsupported export format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return write(file, Export(idx))
}
