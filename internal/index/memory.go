// ABOUTME: In-memory linear-scan vector index guarded by a single RWMutex
// ABOUTME: Keeps entries in insertion order so equal scores rank earlier inserts first
package index

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
)

// StorageMemory is the storage_type reported by MemoryIndex
const StorageMemory = "memory"

// MemoryIndex is an exact linear-scan index held in process memory
type MemoryIndex struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	entries     []models.VectorEntry
	pos         map[string]int
	logger      *log.Logger
	now         func() time.Time
}

// NewMemoryIndex creates an uninitialized in-memory index
func NewMemoryIndex(logger *log.Logger) *MemoryIndex {
	return &MemoryIndex{
		pos:    map[string]int{},
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// Initialize sets the collection configuration. Re-initializing with a
// different dimension is only allowed while the index is empty.
func (m *MemoryIndex) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized && len(m.entries) > 0 && cfg.Dimension != m.cfg.Dimension {
		return models.Statef("cannot change dimension from %d to %d on a non-empty index", m.cfg.Dimension, cfg.Dimension)
	}
	m.cfg = cfg
	m.initialized = true
	m.logger.Debug("initialized memory index", "dimension", cfg.Dimension, "metric", cfg.Metric)
	return nil
}

// Config returns the active configuration
func (m *MemoryIndex) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *MemoryIndex) requireInit() error {
	if !m.initialized {
		return models.Statef("vector index is not initialized")
	}
	return nil
}

// AddVector inserts a single entry
func (m *MemoryIndex) AddVector(id string, vector []float64, chunk models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	if _, ok := m.pos[id]; ok {
		return models.Validationf("duplicate id %q", id)
	}
	v, err := Prepare(m.cfg, id, vector, chunk)
	if err != nil {
		m.logger.Warn("rejected vector", "id", id, "err", err)
		return err
	}
	if err := CheckCapacity(m.cfg, len(m.entries), 1); err != nil {
		return err
	}
	m.appendEntry(id, v, chunk)
	return nil
}

// AddVectors inserts a batch; nothing is added unless every entry is valid
func (m *MemoryIndex) AddVectors(chunks []models.Chunk, vectors [][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	prepared, err := CheckBatch(m.cfg, chunks, vectors, func(id string) bool {
		_, ok := m.pos[id]
		return ok
	})
	if err != nil {
		m.logger.Warn("rejected vector batch", "size", len(chunks), "err", err)
		return err
	}
	if err := CheckCapacity(m.cfg, len(m.entries), len(chunks)); err != nil {
		return err
	}

	for i, ch := range chunks {
		m.appendEntry(ch.ID, prepared[i], ch)
	}
	m.logger.Debug("added vectors", "count", len(chunks), "total", len(m.entries))
	return nil
}

// Upsert replaces an existing entry in place or appends a new one
func (m *MemoryIndex) Upsert(id string, vector []float64, chunk models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	v, err := Prepare(m.cfg, id, vector, chunk)
	if err != nil {
		return err
	}
	if i, ok := m.pos[id]; ok {
		m.entries[i].Vector = v
		m.entries[i].Chunk = chunk.Clone()
		return nil
	}
	if err := CheckCapacity(m.cfg, len(m.entries), 1); err != nil {
		return err
	}
	m.appendEntry(id, v, chunk)
	return nil
}

func (m *MemoryIndex) appendEntry(id string, vector []float64, chunk models.Chunk) {
	m.pos[id] = len(m.entries)
	m.entries = append(m.entries, models.VectorEntry{
		ID:         id,
		Vector:     vector,
		Chunk:      chunk.Clone(),
		InsertedAt: m.now(),
	})
}

// UpdateVector replaces the vector and/or metadata of an entry. Supplying a
// real vector for an unembedded entry clears its unembedded flag.
func (m *MemoryIndex) UpdateVector(id string, vector []float64, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	i, ok := m.pos[id]
	if !ok {
		return models.NotFoundf("vector %q", id)
	}

	entry := m.entries[i]
	if metadata != nil {
		entry.Chunk.Metadata = models.CloneMetadata(metadata)
	}
	if vector != nil {
		if err := models.ValidateVector(vector, m.cfg.Dimension); err != nil {
			return err
		}
		entry.Vector = append([]float64(nil), vector...)
		entry.Chunk = entry.Chunk.WithoutMetadata(models.MetaUnembedded, models.MetaEmbedError)
	}
	m.entries[i] = entry
	return nil
}

// Search ranks every embedded entry against query
func (m *MemoryIndex) Search(query []float64, topK int, threshold float64) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return []models.SearchResult{}, nil
	}
	if err := CheckQuery(m.cfg, query, topK); err != nil {
		return nil, err
	}
	return Rank(m.cfg.Metric, query, m.entries, topK, threshold), nil
}

// RemoveVector deletes one entry
func (m *MemoryIndex) RemoveVector(id string) error {
	n, err := m.RemoveVectors([]string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFoundf("vector %q", id)
	}
	return nil
}

// RemoveVectors deletes every listed id that exists and reports how many were removed
func (m *MemoryIndex) RemoveVectors(ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireInit(); err != nil {
		return 0, err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.pos[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	kept := m.entries[:0]
	for _, e := range m.entries {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	clear(m.entries[len(kept):])
	m.entries = kept
	m.reindex()
	m.logger.Debug("removed vectors", "count", len(drop), "total", len(m.entries))
	return len(drop), nil
}

// IDsByDocument returns the ids whose document_id or source equals key
func (m *MemoryIndex) IDsByDocument(key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, e := range m.entries {
		if matchesDocument(e.Chunk, key) {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (m *MemoryIndex) reindex() {
	m.pos = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.pos[e.ID] = i
	}
}

// Clear removes every entry but keeps the configuration
func (m *MemoryIndex) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	m.pos = map[string]int{}
	m.logger.Info("cleared memory index")
	return nil
}

// Count returns the number of stored entries
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Has reports whether id is stored
func (m *MemoryIndex) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pos[id]
	return ok
}

// Get returns a copy of the entry for id
func (m *MemoryIndex) Get(id string) (models.VectorEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.pos[id]
	if !ok {
		return models.VectorEntry{}, models.NotFoundf("vector %q", id)
	}
	return copyEntry(m.entries[i]), nil
}

// Entries returns copies of all entries in insertion order
func (m *MemoryIndex) Entries() []models.VectorEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.VectorEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = copyEntry(e)
	}
	return out
}

func copyEntry(e models.VectorEntry) models.VectorEntry {
	e.Vector = append([]float64(nil), e.Vector...)
	e.Chunk = e.Chunk.Clone()
	return e
}

// Stats summarizes the index
func (m *MemoryIndex) Stats() models.IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Summarize(m.cfg, StorageMemory, m.entries)
}

// Save writes a snapshot of the index to path
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	if err := SaveFile(path, m.cfg, StorageMemory, m.entries); err != nil {
		return err
	}
	m.logger.Info("saved vector index", "path", path, "vectors", len(m.entries))
	return nil
}

// SaveTo writes a snapshot of the index to w
func (m *MemoryIndex) SaveTo(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.requireInit(); err != nil {
		return err
	}
	if err := WriteSnapshot(w, m.cfg, StorageMemory, m.entries); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load replaces the index contents with a snapshot. The file is fully read and
// validated before anything is replaced.
func (m *MemoryIndex) Load(path string) error {
	snap, err := LoadFile(path)
	if err != nil {
		return err
	}
	return m.restore(snap, path)
}

// LoadFrom replaces the index contents with the snapshot read from r
func (m *MemoryIndex) LoadFrom(r io.Reader) error {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return err
	}
	return m.restore(snap, "stream")
}

func (m *MemoryIndex) restore(snap *Snapshot, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := ConfigFor(m.cfg, m.initialized, snap.Config)
	if err != nil {
		return err
	}
	if err := CheckCapacity(cfg, 0, len(snap.Vectors)); err != nil {
		return err
	}

	m.cfg = cfg
	m.initialized = true
	m.entries = snap.Vectors
	m.reindex()
	m.logger.Info("loaded vector index", "from", from, "vectors", len(m.entries))
	return nil
}

// Close releases nothing; the memory index lives until garbage collected
func (m *MemoryIndex) Close() error {
	return nil
}

var (
	_ VectorIndex    = (*MemoryIndex)(nil)
	_ DocumentLookup = (*MemoryIndex)(nil)
)
