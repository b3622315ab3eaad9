// ABOUTME: SQLite-backed VectorIndex storing vectors as BLOBs next to their chunk JSON
// ABOUTME: Search loads one collection in insertion order and ranks it by exact similarity
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
)

// StorageSQLite is the storage_type reported by Index
const StorageSQLite = "sqlite"

// Index is a persistent VectorIndex over one collection of a SQLite database
type Index struct {
	mu          sync.RWMutex
	db          *DB
	ownsDB      bool
	cfg         index.Config
	initialized bool
	logger      *log.Logger
	now         func() time.Time
}

// NewIndex creates an uninitialized index over an open database. The caller
// keeps ownership of db.
func NewIndex(db *DB, logger *log.Logger) *Index {
	return &Index{
		db:     db,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// OpenIndex opens the database at path and returns an index that closes it on Close
func OpenIndex(path string, logger *log.Logger) (*Index, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	ix := NewIndex(db, logger)
	ix.ownsDB = true
	return ix, nil
}

// Initialize binds the index to cfg.CollectionName. An existing collection
// keeps its rows; changing the dimension of a non-empty collection fails.
func (ix *Index) Initialize(cfg index.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = index.DefaultConfig().CollectionName
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var storedDim int
	err := ix.db.QueryRow(`SELECT dimension FROM collections WHERE name = ?`, cfg.CollectionName).Scan(&storedDim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read collection: %w", err)
	case storedDim != cfg.Dimension:
		n, err := ix.countIn(cfg.CollectionName)
		if err != nil {
			return err
		}
		if n > 0 {
			return models.Statef("collection %q holds %d vectors of dimension %d, cannot switch to %d",
				cfg.CollectionName, n, storedDim, cfg.Dimension)
		}
	}

	if err := ix.writeCollection(ix.db.Conn(), cfg); err != nil {
		return err
	}
	ix.cfg = cfg
	ix.initialized = true
	ix.logger.Debug("initialized sqlite index", "collection", cfg.CollectionName, "dimension", cfg.Dimension, "path", ix.db.Path())
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (ix *Index) writeCollection(ex execer, cfg index.Config) error {
	_, err := ex.Exec(`
		INSERT INTO collections (name, dimension, metric, max_elements)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			dimension = excluded.dimension,
			metric = excluded.metric,
			max_elements = excluded.max_elements
	`, cfg.CollectionName, cfg.Dimension, string(cfg.Metric), cfg.MaxElements)
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Config returns the active configuration
func (ix *Index) Config() index.Config {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.cfg
}

func (ix *Index) requireInit() error {
	if !ix.initialized {
		return models.Statef("vector index is not initialized")
	}
	return nil
}

func (ix *Index) countIn(collection string) (int, error) {
	var n int
	err := ix.db.QueryRow(`SELECT COUNT(*) FROM vectors WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

func (ix *Index) exists(id string) (bool, error) {
	var one int
	err := ix.db.QueryRow(`SELECT 1 FROM vectors WHERE collection = ? AND id = ?`, ix.cfg.CollectionName, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up vector: %w", err)
	}
	return true, nil
}

// AddVector inserts a single entry
func (ix *Index) AddVector(id string, vector []float64, chunk models.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.requireInit(); err != nil {
		return err
	}
	found, err := ix.exists(id)
	if err != nil {
		return err
	}
	if found {
		return models.Validationf("duplicate id %q", id)
	}
	v, err := index.Prepare(ix.cfg, id, vector, chunk)
	if err != nil {
		ix.logger.Warn("rejected vector", "id", id, "err", err)
		return err
	}
	n, err := ix.countIn(ix.cfg.CollectionName)
	if err != nil {
		return err
	}
	if err := index.CheckCapacity(ix.cfg, n, 1); err != nil {
		return err
	}
	return ix.insert(ix.db.Conn(), id, v, chunk, ix.now())
}

// AddVectors inserts a batch in one transaction; nothing is added unless every entry is valid
func (ix *Index) AddVectors(chunks []models.Chunk, vectors [][]float64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.requireInit(); err != nil {
		return err
	}

	var lookupErr error
	prepared, err := index.CheckBatch(ix.cfg, chunks, vectors, func(id string) bool {
		found, err := ix.exists(id)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return found
	})
	if lookupErr != nil {
		return lookupErr
	}
	if err != nil {
		ix.logger.Warn("rejected vector batch", "size", len(chunks), "err", err)
		return err
	}
	n, err := ix.countIn(ix.cfg.CollectionName)
	if err != nil {
		return err
	}
	if err := index.CheckCapacity(ix.cfg, n, len(chunks)); err != nil {
		return err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := ix.now()
	for i, ch := range chunks {
		if err := ix.insert(tx, ch.ID, prepared[i], ch, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vectors: %w", err)
	}
	ix.logger.Debug("added vectors", "count", len(chunks), "collection", ix.cfg.CollectionName)
	return nil
}

func (ix *Index) insert(ex execer, id string, vector []float64, chunk models.Chunk, at time.Time) error {
	chunkJSON, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %q: %w", id, err)
	}
	_, err = ex.Exec(`
		INSERT INTO vectors (collection, id, document_id, source, unembedded, vector, chunk, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ix.cfg.CollectionName, id,
		nullString(chunk.MetaString(models.MetaDocumentID)),
		nullString(chunk.MetaString(models.MetaSource)),
		boolInt(chunk.IsUnembedded()), vectorToBlob(vector), string(chunkJSON), at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert vector %q: %w", id, err)
	}
	return nil
}

// Upsert replaces an existing entry in place or appends a new one
func (ix *Index) Upsert(id string, vector []float64, chunk models.Chunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.requireInit(); err != nil {
		return err
	}
	v, err := index.Prepare(ix.cfg, id, vector, chunk)
	if err != nil {
		return err
	}
	found, err := ix.exists(id)
	if err != nil {
		return err
	}
	if !found {
		n, err := ix.countIn(ix.cfg.CollectionName)
		if err != nil {
			return err
		}
		if err := index.CheckCapacity(ix.cfg, n, 1); err != nil {
			return err
		}
		return ix.insert(ix.db.Conn(), id, v, chunk, ix.now())
	}
	return ix.update(id, v, chunk)
}

func (ix *Index) update(id string, vector []float64, chunk models.Chunk) error {
	chunkJSON, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %q: %w", id, err)
	}
	_, err = ix.db.Exec(`
		UPDATE vectors
		SET document_id = ?, source = ?, unembedded = ?, vector = ?, chunk = ?
		WHERE collection = ? AND id = ?
	`, nullString(chunk.MetaString(models.MetaDocumentID)),
		nullString(chunk.MetaString(models.MetaSource)),
		boolInt(chunk.IsUnembedded()), vectorToBlob(vector), string(chunkJSON),
		ix.cfg.CollectionName, id)
	if err != nil {
		return fmt.Errorf("failed to update vector %q: %w", id, err)
	}
	return nil
}

// UpdateVector replaces the vector and/or metadata of an entry. Supplying a
// real vector for an unembedded entry clears its unembedded flag.
func (ix *Index) UpdateVector(id string, vector []float64, metadata map[string]any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.requireInit(); err != nil {
		return err
	}
	entry, err := ix.get(id)
	if err != nil {
		return err
	}

	if metadata != nil {
		entry.Chunk.Metadata = models.CloneMetadata(metadata)
	}
	if vector != nil {
		if err := models.ValidateVector(vector, ix.cfg.Dimension); err != nil {
			return err
		}
		entry.Vector = vector
		entry.Chunk = entry.Chunk.WithoutMetadata(models.MetaUnembedded, models.MetaEmbedError)
	}
	return ix.update(id, entry.Vector, entry.Chunk)
}

// Search ranks every embedded entry of the collection against query
func (ix *Index) Search(query []float64, topK int, threshold float64) ([]models.SearchResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.initialized {
		return []models.SearchResult{}, nil
	}
	if err := index.CheckQuery(ix.cfg, query, topK); err != nil {
		return nil, err
	}

	entries, err := ix.scan(`WHERE collection = ? AND unembedded = 0`, ix.cfg.CollectionName)
	if err != nil {
		return nil, err
	}
	return index.Rank(ix.cfg.Metric, query, entries, topK, threshold), nil
}

// RemoveVector deletes one entry
func (ix *Index) RemoveVector(id string) error {
	n, err := ix.RemoveVectors([]string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NotFoundf("vector %q", id)
	}
	return nil
}

// RemoveVectors deletes every listed id that exists and reports how many were removed
func (ix *Index) RemoveVectors(ids []string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.requireInit(); err != nil {
		return 0, err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, id := range ids {
		res, err := tx.Exec(`DELETE FROM vectors WHERE collection = ? AND id = ?`, ix.cfg.CollectionName, id)
		if err != nil {
			return 0, fmt.Errorf("failed to delete vector %q: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit removal: %w", err)
	}
	if removed > 0 {
		ix.logger.Debug("removed vectors", "count", removed, "collection", ix.cfg.CollectionName)
	}
	return removed, nil
}

// IDsByDocument returns the ids whose document_id or source equals key, in insertion order
func (ix *Index) IDsByDocument(key string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rows, err := ix.db.Query(`
		SELECT id FROM vectors
		WHERE collection = ? AND (document_id = ? OR source = ?)
		ORDER BY seq ASC
	`, ix.cfg.CollectionName, key, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes every entry of the collection but keeps its configuration
func (ix *Index) Clear() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, err := ix.db.Exec(`DELETE FROM vectors WHERE collection = ?`, ix.cfg.CollectionName); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	ix.logger.Info("cleared sqlite index", "collection", ix.cfg.CollectionName)
	return nil
}

// Count returns the number of stored entries
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n, err := ix.countIn(ix.cfg.CollectionName)
	if err != nil {
		ix.logger.Error("count failed", "err", err)
		return 0
	}
	return n
}

// Has reports whether id is stored
func (ix *Index) Has(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	found, err := ix.exists(id)
	if err != nil {
		ix.logger.Error("lookup failed", "id", id, "err", err)
	}
	return found
}

// Get returns the entry for id
func (ix *Index) Get(id string) (models.VectorEntry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.get(id)
}

func (ix *Index) get(id string) (models.VectorEntry, error) {
	entries, err := ix.scan(`WHERE collection = ? AND id = ?`, ix.cfg.CollectionName, id)
	if err != nil {
		return models.VectorEntry{}, err
	}
	if len(entries) == 0 {
		return models.VectorEntry{}, models.NotFoundf("vector %q", id)
	}
	return entries[0], nil
}

// Entries returns all entries in insertion order
func (ix *Index) Entries() []models.VectorEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries, err := ix.scan(`WHERE collection = ?`, ix.cfg.CollectionName)
	if err != nil {
		ix.logger.Error("scan failed", "err", err)
		return nil
	}
	return entries
}

// scan loads entries matching where, ordered by insertion
func (ix *Index) scan(where string, args ...any) ([]models.VectorEntry, error) {
	rows, err := ix.db.Query(`SELECT id, vector, chunk, inserted_at FROM vectors `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.VectorEntry
	for rows.Next() {
		var (
			e         models.VectorEntry
			blob      []byte
			chunkJSON string
			inserted  int64
		)
		if err := rows.Scan(&e.ID, &blob, &chunkJSON, &inserted); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(chunkJSON), &e.Chunk); err != nil {
			return nil, fmt.Errorf("failed to decode chunk %q: %w", e.ID, err)
		}
		e.Vector = blobToVector(blob)
		e.InsertedAt = time.Unix(0, inserted)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes the collection
func (ix *Index) Stats() models.IndexStats {
	cfg := ix.Config()
	return index.Summarize(cfg, StorageSQLite, ix.Entries())
}

// Save writes a snapshot of the collection to path
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := ix.requireInit(); err != nil {
		return err
	}
	entries, err := ix.scan(`WHERE collection = ?`, ix.cfg.CollectionName)
	if err != nil {
		return err
	}
	if err := index.SaveFile(path, ix.cfg, StorageSQLite, entries); err != nil {
		return err
	}
	ix.logger.Info("saved vector index", "path", path, "vectors", len(entries))
	return nil
}

// SaveTo writes a snapshot of the collection to w
func (ix *Index) SaveTo(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := ix.requireInit(); err != nil {
		return err
	}
	entries, err := ix.scan(`WHERE collection = ?`, ix.cfg.CollectionName)
	if err != nil {
		return err
	}
	if err := index.WriteSnapshot(w, ix.cfg, StorageSQLite, entries); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load replaces the collection contents with a snapshot in one transaction
func (ix *Index) Load(path string) error {
	snap, err := index.LoadFile(path)
	if err != nil {
		return err
	}
	return ix.restore(snap, path)
}

// LoadFrom replaces the collection contents with the snapshot read from r
func (ix *Index) LoadFrom(r io.Reader) error {
	snap, err := index.ReadSnapshot(r)
	if err != nil {
		return err
	}
	return ix.restore(snap, "stream")
}

func (ix *Index) restore(snap *index.Snapshot, from string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cfg, err := index.ConfigFor(ix.cfg, ix.initialized, snap.Config)
	if err != nil {
		return err
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = index.DefaultConfig().CollectionName
	}
	if err := index.CheckCapacity(cfg, 0, len(snap.Vectors)); err != nil {
		return err
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ix.writeCollection(tx, cfg); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM vectors WHERE collection = ?`, cfg.CollectionName); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}

	prev := ix.cfg
	ix.cfg = cfg
	for _, e := range snap.Vectors {
		at := e.InsertedAt
		if at.IsZero() {
			at = ix.now()
		}
		if err := ix.insert(tx, e.ID, e.Vector, e.Chunk, at); err != nil {
			ix.cfg = prev
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		ix.cfg = prev
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	ix.initialized = true
	ix.logger.Info("loaded vector index", "from", from, "vectors", len(snap.Vectors))
	return nil
}

// Close closes the database when the index opened it
func (ix *Index) Close() error {
	if ix.ownsDB {
		return ix.db.Close()
	}
	return nil
}

var (
	_ index.VectorIndex    = (*Index)(nil)
	_ index.DocumentLookup = (*Index)(nil)
)

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
