// ABOUTME: VectorIndex capability set implemented by every storage backend
// ABOUTME: Config, metrics and the validation shared by the memory and SQLite backends
package index

import (
	"io"

	"github.com/harper/ragcore/internal/models"
)

// Metric names the similarity function used for search
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// DefaultDimension is the embedding size used when none is configured
const DefaultDimension = 768

// Config describes an index collection
type Config struct {
	Dimension      int    `json:"vector_dimension" yaml:"dimension"`
	Metric         Metric `json:"metric" yaml:"metric"`
	MaxElements    int    `json:"max_elements" yaml:"max_elements"`
	StorePath      string `json:"store_path" yaml:"store_path"`
	CollectionName string `json:"collection_name" yaml:"collection_name"`
}

// DefaultConfig returns the default index configuration
func DefaultConfig() Config {
	return Config{
		Dimension:      DefaultDimension,
		Metric:         MetricCosine,
		MaxElements:    1000000,
		StorePath:      "./data/vector_db",
		CollectionName: "knowledge_base",
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Dimension < 1 {
		return models.Validationf("dimension must be >= 1, got %d", c.Dimension)
	}
	switch c.Metric {
	case MetricCosine, MetricDot:
	default:
		return models.Validationf("unsupported metric %q", c.Metric)
	}
	if c.MaxElements < 0 {
		return models.Validationf("max_elements must be >= 0, got %d", c.MaxElements)
	}
	return nil
}

// VectorIndex stores (id, embedding, chunk) entries and answers exact similarity queries.
//
// Inserts, updates and removals are mutually exclusive with each other and with
// searches; concurrent searches may run in parallel. Search on an index that was
// never initialized returns no results rather than an error.
type VectorIndex interface {
	Initialize(cfg Config) error
	Config() Config

	// AddVector inserts one entry; an existing id is rejected
	AddVector(id string, vector []float64, chunk models.Chunk) error
	// AddVectors inserts a batch keyed by chunk id; all or nothing
	AddVectors(chunks []models.Chunk, vectors [][]float64) error
	// Upsert inserts or replaces the entry for id
	Upsert(id string, vector []float64, chunk models.Chunk) error
	// UpdateVector replaces the vector and/or metadata of an existing entry; nil keeps the old value
	UpdateVector(id string, vector []float64, metadata map[string]any) error

	Search(query []float64, topK int, threshold float64) ([]models.SearchResult, error)

	RemoveVector(id string) error
	RemoveVectors(ids []string) (int, error)
	Clear() error

	Count() int
	Has(id string) bool
	Get(id string) (models.VectorEntry, error)
	// Entries returns copies of all entries in insertion order
	Entries() []models.VectorEntry
	Stats() models.IndexStats

	Save(path string) error
	Load(path string) error
	// SaveTo and LoadFrom stream the same snapshot document as Save and Load
	SaveTo(w io.Writer) error
	LoadFrom(r io.Reader) error
	Close() error
}

// Placeholder returns the zero vector stored for chunks that could not be embedded
func Placeholder(dim int) []float64 {
	return make([]float64, dim)
}

// Prepare validates one entry and returns the vector to store
func Prepare(cfg Config, id string, vector []float64, chunk models.Chunk) ([]float64, error) {
	if id == "" {
		return nil, models.Validationf("entry id cannot be empty")
	}
	if chunk.IsUnembedded() && len(vector) == 0 {
		return Placeholder(cfg.Dimension), nil
	}
	if err := models.ValidateVector(vector, cfg.Dimension); err != nil {
		return nil, err
	}
	out := make([]float64, len(vector))
	copy(out, vector)
	return out, nil
}

// CheckBatch validates a batch before any mutation: matching lengths, no
// duplicate ids inside the batch or against exists, and valid vectors
func CheckBatch(cfg Config, chunks []models.Chunk, vectors [][]float64, exists func(string) bool) ([][]float64, error) {
	if len(chunks) != len(vectors) {
		return nil, models.Validationf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	seen := make(map[string]bool, len(chunks))
	prepared := make([][]float64, len(chunks))
	for i, ch := range chunks {
		if seen[ch.ID] || exists(ch.ID) {
			return nil, models.Validationf("duplicate id %q", ch.ID)
		}
		seen[ch.ID] = true

		v, err := Prepare(cfg, ch.ID, vectors[i], ch)
		if err != nil {
			return nil, err
		}
		prepared[i] = v
	}
	return prepared, nil
}

// CheckCapacity rejects inserts that would grow the index past MaxElements
func CheckCapacity(cfg Config, current, adding int) error {
	if cfg.MaxElements > 0 && current+adding > cfg.MaxElements {
		return models.Validationf("index capacity %d exceeded (%d + %d)", cfg.MaxElements, current, adding)
	}
	return nil
}

// Summarize computes stats over entries in insertion order
func Summarize(cfg Config, storage string, entries []models.VectorEntry) models.IndexStats {
	stats := models.IndexStats{
		VectorCount: len(entries),
		Dimension:   cfg.Dimension,
		StorageType: storage,
		Metric:      string(cfg.Metric),
	}

	docs := map[string]bool{}
	var bytes int
	for _, e := range entries {
		if e.Chunk.IsUnembedded() {
			stats.UnembeddedCount++
		}
		if doc := e.Chunk.MetaString(models.MetaDocumentID); doc != "" {
			docs[doc] = true
		}
		bytes += len(e.Vector)*8 + len(e.Chunk.Content) + len(e.ID)
		if stats.OldestEntry.IsZero() || e.InsertedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.InsertedAt
		}
		if e.InsertedAt.After(stats.NewestEntry) {
			stats.NewestEntry = e.InsertedAt
		}
	}
	stats.DocumentCount = len(docs)
	stats.EstimatedMemoryMB = float64(bytes) / (1024 * 1024)
	return stats
}

// DocumentLookup is implemented by backends that can list a document's
// chunk ids without returning every entry
type DocumentLookup interface {
	IDsByDocument(key string) ([]string, error)
}

// IDsByDocument returns the ids of entries whose document_id or source equals
// key, in insertion order
func IDsByDocument(idx VectorIndex, key string) ([]string, error) {
	if l, ok := idx.(DocumentLookup); ok {
		return l.IDsByDocument(key)
	}
	var ids []string
	for _, e := range idx.Entries() {
		if matchesDocument(e.Chunk, key) {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func matchesDocument(ch models.Chunk, key string) bool {
	return ch.MetaString(models.MetaDocumentID) == key || ch.MetaString(models.MetaSource) == key
}
