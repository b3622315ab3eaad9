// ABOUTME: Knowledge-base snapshot file: config header plus every vector with its chunk
// ABOUTME: Files are schema-validated on read and written atomically through a temp file
package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harper/ragcore/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// SnapshotVersion is the schema version written to the config header
const SnapshotVersion = "1.0"

// SnapshotHeader is the config section of a snapshot file
type SnapshotHeader struct {
	Dimension int       `json:"vector_dimension"`
	Version   string    `json:"version"`
	SavedTime time.Time `json:"saved_time"`
	Metric    Metric    `json:"metric,omitempty"`
	Storage   string    `json:"storage_type,omitempty"`
}

// Snapshot is the full on-disk document
type Snapshot struct {
	Config  SnapshotHeader       `json:"config"`
	Vectors []models.VectorEntry `json:"vectors"`
}

const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["config", "vectors"],
  "properties": {
    "config": {
      "type": "object",
      "required": ["vector_dimension", "version"],
      "properties": {
        "vector_dimension": {"type": "integer", "minimum": 1},
        "version": {"type": "string", "const": "1.0"},
        "saved_time": {"type": "string"},
        "metric": {"type": "string", "enum": ["cosine", "dot"]}
      }
    },
    "vectors": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "vector", "chunk"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "timestamp": {"type": "string"},
          "vector": {"type": "array", "items": {"type": "number"}},
          "chunk": {
            "type": "object",
            "required": ["chunk_id", "content"],
            "properties": {
              "chunk_id": {"type": "string"},
              "content": {"type": "string"},
              "chunk_index": {"type": "integer"},
              "token_count": {"type": "integer"},
              "metadata": {"type": ["object", "null"]}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
})

// WriteSnapshot encodes entries as a snapshot document
func WriteSnapshot(w io.Writer, cfg Config, storage string, entries []models.VectorEntry) error {
	snap := Snapshot{
		Config: SnapshotHeader{
			Dimension: cfg.Dimension,
			Version:   SnapshotVersion,
			SavedTime: time.Now().UTC(),
			Metric:    cfg.Metric,
			Storage:   storage,
		},
		Vectors: entries,
	}
	if snap.Vectors == nil {
		snap.Vectors = []models.VectorEntry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadSnapshot validates and decodes a snapshot document. Every vector must
// match the header dimension unless its chunk is flagged unembedded.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, models.Validationf("snapshot is not valid JSON: %v", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, models.Validationf("snapshot does not match schema: %s", strings.Join(problems, "; "))
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, models.Validationf("failed to decode snapshot: %v", err)
	}

	seen := make(map[string]bool, len(snap.Vectors))
	for i := range snap.Vectors {
		e := &snap.Vectors[i]
		if seen[e.ID] {
			return nil, models.Validationf("snapshot contains duplicate id %q", e.ID)
		}
		seen[e.ID] = true
		if e.Chunk.IsUnembedded() && len(e.Vector) == 0 {
			e.Vector = Placeholder(snap.Config.Dimension)
			continue
		}
		if err := models.ValidateVector(e.Vector, snap.Config.Dimension); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
	}
	return &snap, nil
}

// SaveFile writes a snapshot to path through a temp file and rename
func SaveFile(path string, cfg Config, storage string, entries []models.VectorEntry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kb-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := WriteSnapshot(tmp, cfg, storage, entries); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// LoadFile opens and reads a snapshot file
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, models.NotFoundf("knowledge base file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSnapshot(f)
}

// ConfigFor reconciles a loaded header with the index's current config.
// An initialized index keeps its settings but must agree on the dimension.
func ConfigFor(current Config, initialized bool, header SnapshotHeader) (Config, error) {
	if !initialized {
		cfg := DefaultConfig()
		cfg.Dimension = header.Dimension
		if header.Metric != "" {
			cfg.Metric = header.Metric
		}
		return cfg, nil
	}
	if current.Dimension != header.Dimension {
		return current, models.Validationf("snapshot dimension %d does not match index dimension %d", header.Dimension, current.Dimension)
	}
	return current, nil
}
