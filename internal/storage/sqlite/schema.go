// ABOUTME: SQLite database schema for vector collections
// ABOUTME: One row per collection plus one row per stored chunk vector
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Collections table (one per knowledge base)
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    dimension INTEGER NOT NULL,
    metric TEXT NOT NULL DEFAULT 'cosine',
    max_elements INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Vectors table; seq preserves insertion order for stable ranking
CREATE TABLE IF NOT EXISTS vectors (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
    id TEXT NOT NULL,
    document_id TEXT,
    source TEXT,
    unembedded INTEGER NOT NULL DEFAULT 0,
    vector BLOB NOT NULL,
    chunk TEXT NOT NULL,
    inserted_at INTEGER NOT NULL,
    UNIQUE (collection, id)
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_vectors_document ON vectors(collection, document_id);
CREATE INDEX IF NOT EXISTS idx_vectors_source ON vectors(collection, source);
CREATE INDEX IF NOT EXISTS idx_vectors_unembedded ON vectors(collection, unembedded);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
