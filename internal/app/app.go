// ABOUTME: Wires configuration into a running engine for the CLI and server binaries
// ABOUTME: Picks the embedder, generator and storage backend and persists the knowledge base
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/config"
	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/engine"
	"github.com/harper/ragcore/internal/llm"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/storage/sqlite"
)

// App is an initialized engine plus the configuration it was built from
type App struct {
	Config    *config.Config
	Engine    *engine.Engine
	Generator *llm.Generator
	logger    *log.Logger
}

// NewEmbedder builds the configured embedding provider
func NewEmbedder(cfg *config.Config, logger *log.Logger) (embedding.Provider, error) {
	switch cfg.Embedder {
	case config.EmbedderHash:
		return embedding.NewHashProvider(cfg.Dimension), nil
	case config.EmbedderOpenAI:
		if !cfg.HasAPIKey() {
			return nil, errors.New("RAGCORE_API_KEY or OPENAI_API_KEY is required (or set RAGCORE_EMBEDDER=hash for offline use)")
		}
		return embedding.NewOpenAI(cfg.EmbeddingConfig(), logger)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

// NewGenerator builds the chat generator, or returns nil when no API key is configured
func NewGenerator(cfg *config.Config, logger *log.Logger) (*llm.Generator, error) {
	if !cfg.HasAPIKey() {
		return nil, nil
	}
	return llm.New(cfg.GeneratorConfig(), logger)
}

// Open builds and initializes an engine from cfg. The memory backend loads the
// knowledge base file when it exists; the sqlite backend reads its database.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	logger = logging.OrDiscard(logger)

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Embedder:    embedder,
		IndexConfig: cfg.IndexConfig(),
		Logger:      logger,
	}
	// Only set when present so the interface stays nil without a generator
	if gen != nil {
		opts.Generator = gen
	}

	if cfg.Backend == config.BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		idx, err := sqlite.OpenIndex(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		opts.Index = idx
	}

	eng := engine.New(opts)
	if err := eng.Initialize(ctx, cfg.RAG); err != nil {
		if opts.Index != nil {
			_ = opts.Index.Close()
		}
		return nil, err
	}

	a := &App{Config: cfg, Engine: eng, Generator: gen, logger: logger}
	if cfg.Backend == config.BackendMemory {
		if err := a.loadKnowledgeBase(); err != nil {
			_ = eng.Shutdown(ctx)
			return nil, err
		}
	}
	return a, nil
}

func (a *App) loadKnowledgeBase() error {
	path := a.Config.KnowledgeBase
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			a.logger.Debug("no knowledge base file yet", "path", path)
			return nil
		}
		return fmt.Errorf("failed to stat knowledge base: %w", err)
	}
	return a.Engine.LoadKnowledgeBase(path)
}

// Persist writes the knowledge base file for the memory backend. The sqlite
// backend commits on every write, so there is nothing to do.
func (a *App) Persist() error {
	if a.Config.Backend != config.BackendMemory {
		return nil
	}
	return a.Engine.SaveKnowledgeBase(a.Config.KnowledgeBase)
}

// Snapshot returns the knowledge base as snapshot JSON, whatever the backend
func (a *App) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Engine.WriteKnowledgeBase(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the knowledge base with snapshot JSON and persists it.
// An invalid snapshot leaves the knowledge base untouched.
func (a *App) Restore(data []byte) error {
	if err := a.Engine.ReadKnowledgeBase(bytes.NewReader(data)); err != nil {
		return err
	}
	return a.Persist()
}

// Close shuts the engine down, closing the index
func (a *App) Close(ctx context.Context) error {
	return a.Engine.Shutdown(ctx)
}
