// ABOUTME: RagEngine wires chunker, vector index, retriever and generator into one lifecycle
// ABOUTME: Tracks the engine state and in-flight operations so Shutdown can drain them
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harper/ragcore/internal/chunker"
	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/llm"
	"github.com/harper/ragcore/internal/logging"
	"github.com/harper/ragcore/internal/models"
	"github.com/harper/ragcore/internal/retriever"
)

// State is the engine lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Generator produces an answer from a question and its evidence. *llm.Generator implements it.
type Generator interface {
	GenerateWithRetrieval(ctx context.Context, question string, chunks []models.Chunk, template string, opts llm.Options) models.GenerationResult
}

// streamer is implemented by generators that can deliver tokens as they arrive
type streamer interface {
	GenerateStream(ctx context.Context, prompt string, opts llm.Options, onToken func(string)) models.GenerationResult
}

// modeler is implemented by generators that can name their model
type modeler interface {
	Model() string
}

// Options are the collaborators injected into an engine
type Options struct {
	// Embedder is required
	Embedder embedding.Provider
	// Generator is optional; without one queries return an extractive answer
	Generator Generator
	// Index defaults to an in-memory index. The engine closes it on Shutdown.
	Index index.VectorIndex
	// IndexConfig defaults to index.DefaultConfig with the embedder's dimension
	IndexConfig index.Config
	// IngestConcurrency bounds parallel file ingestion (default 4)
	IngestConcurrency int
	Logger            *log.Logger
}

// components are rebuilt by UpdateConfig; an operation works on the set it acquired
type components struct {
	cfg       models.RagConfig
	chunker   *chunker.Chunker
	retriever *retriever.Retriever
}

// Engine is the RAG orchestrator. Queries may run concurrently; index writes
// are serialized by the index itself.
type Engine struct {
	mu       sync.RWMutex
	state    State
	comp     *components
	opts     Options
	index    index.VectorIndex
	logger   *log.Logger
	inflight sync.WaitGroup
	handles  map[string]*QueryHandle
}

// New creates an engine in the uninitialized state
func New(opts Options) *Engine {
	if opts.IngestConcurrency < 1 {
		opts.IngestConcurrency = 4
	}
	return &Engine{
		state:   StateUninitialized,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger),
		handles: map[string]*QueryHandle{},
	}
}

// Initialize validates cfg, initializes the index and builds the pipeline
func (e *Engine) Initialize(ctx context.Context, cfg models.RagConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if e.opts.Embedder == nil {
		return models.Validationf("an embedding provider is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		return models.Statef("engine is %s", e.state)
	}

	idxCfg := e.opts.IndexConfig
	if idxCfg.Dimension == 0 {
		idxCfg.Dimension = e.opts.Embedder.Dimension()
	}
	if idxCfg.Metric == "" {
		idxCfg.Metric = index.MetricCosine
	}
	if idxCfg.CollectionName == "" {
		idxCfg.CollectionName = index.DefaultConfig().CollectionName
	}
	if idxCfg.Dimension != e.opts.Embedder.Dimension() {
		return models.Validationf("index dimension %d does not match embedding dimension %d", idxCfg.Dimension, e.opts.Embedder.Dimension())
	}

	idx := e.opts.Index
	if idx == nil {
		idx = index.NewMemoryIndex(e.logger)
	}
	if err := idx.Initialize(idxCfg); err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}

	comp, err := e.build(idx, cfg)
	if err != nil {
		return err
	}
	e.index = idx
	e.comp = comp
	e.state = StateInitialized

	e.logger.Info("engine initialized", "dimension", idxCfg.Dimension, "vectors", idx.Count(), "generator", e.opts.Generator != nil)
	return nil
}

func (e *Engine) build(idx index.VectorIndex, cfg models.RagConfig) (*components, error) {
	ch, err := chunker.New(cfg.Chunking)
	if err != nil {
		return nil, err
	}
	r := retriever.New(idx, e.opts.Embedder, retriever.Options{
		Threshold:     cfg.SimilarityThreshold,
		UseReranking:  cfg.UseReranking,
		KeywordWeight: cfg.KeywordWeight,
	}, e.logger)
	return &components{cfg: cfg, chunker: ch, retriever: r}, nil
}

// acquire registers an in-flight operation and returns the current
// components; the caller must call release when done
func (e *Engine) acquire() (*components, func(), error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != StateInitialized {
		return nil, nil, models.Statef("engine is %s", e.state)
	}
	e.inflight.Add(1)
	return e.comp, e.inflight.Done, nil
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Config returns the active configuration
func (e *Engine) Config() models.RagConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.comp == nil {
		return models.RagConfig{}
	}
	return e.comp.cfg
}

// UpdateConfig swaps in a new configuration. Operations already running keep
// the configuration they started with.
func (e *Engine) UpdateConfig(cfg models.RagConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInitialized {
		return models.Statef("engine is %s", e.state)
	}
	comp, err := e.build(e.index, cfg)
	if err != nil {
		return err
	}
	e.comp = comp
	e.logger.Info("engine config updated", "top_k", cfg.TopK, "threshold", cfg.SimilarityThreshold, "rerank", cfg.UseReranking)
	return nil
}

// Index returns the underlying vector index
func (e *Engine) Index() index.VectorIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index
}

// Stats summarizes the knowledge base and the engine configuration
type Stats struct {
	State          string            `json:"state" yaml:"state"`
	Initialized    bool              `json:"initialized" yaml:"initialized"`
	Index          models.IndexStats `json:"index" yaml:"index"`
	Config         models.RagConfig  `json:"config" yaml:"config"`
	EmbedDimension int               `json:"embedding_dimension" yaml:"embedding_dimension"`
	HasGenerator   bool              `json:"has_generator" yaml:"has_generator"`
	GeneratorModel string            `json:"generator_model,omitempty" yaml:"generator_model,omitempty"`
	PendingQueries int               `json:"pending_queries" yaml:"pending_queries"`
}

// KnowledgeBaseStats returns index statistics and the active configuration
func (e *Engine) KnowledgeBaseStats() (Stats, error) {
	comp, release, err := e.acquire()
	if err != nil {
		return Stats{State: e.State().String()}, err
	}
	defer release()

	e.mu.RLock()
	pending := len(e.handles)
	e.mu.RUnlock()

	stats := Stats{
		State:          StateInitialized.String(),
		Initialized:    true,
		Index:          e.index.Stats(),
		Config:         comp.cfg,
		EmbedDimension: e.opts.Embedder.Dimension(),
		PendingQueries: pending,
		HasGenerator:   e.opts.Generator != nil,
	}
	if m, ok := e.opts.Generator.(modeler); ok {
		stats.GeneratorModel = m.Model()
	}
	return stats, nil
}

// ClearKnowledgeBase removes every entry from the index
func (e *Engine) ClearKnowledgeBase() error {
	_, release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.index.Clear(); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}
	e.logger.Info("knowledge base cleared")
	return nil
}

// SaveKnowledgeBase writes a snapshot of the index to path
func (e *Engine) SaveKnowledgeBase(path string) error {
	_, release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.index.Save(path); err != nil {
		return err
	}
	e.logger.Info("knowledge base saved", "path", path, "vectors", e.index.Count())
	return nil
}

// LoadKnowledgeBase replaces the index contents with the snapshot at path
func (e *Engine) LoadKnowledgeBase(path string) error {
	_, release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.index.Load(path); err != nil {
		return err
	}
	e.logger.Info("knowledge base loaded", "path", path, "vectors", e.index.Count())
	return nil
}

// WriteKnowledgeBase streams a snapshot of the index to w
func (e *Engine) WriteKnowledgeBase(w io.Writer) error {
	_, release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()
	return e.index.SaveTo(w)
}

// ReadKnowledgeBase replaces the index contents with the snapshot read from r.
// Nothing is replaced unless the whole snapshot is valid.
func (e *Engine) ReadKnowledgeBase(r io.Reader) error {
	_, release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.index.LoadFrom(r); err != nil {
		return err
	}
	e.logger.Info("knowledge base restored", "vectors", e.index.Count())
	return nil
}

// Shutdown stops accepting work, cancels pending async queries, waits for
// running operations and closes the index. It is safe to call twice.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateShutDown {
		e.mu.Unlock()
		return nil
	}
	wasInitialized := e.state == StateInitialized
	e.state = StateShutDown
	for _, h := range e.handles {
		h.Cancel()
	}
	e.mu.Unlock()

	if !wasInitialized {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted with operations still running: %w", ctx.Err())
	}

	if err := e.index.Close(); err != nil {
		return fmt.Errorf("failed to close vector index: %w", err)
	}
	e.logger.Info("engine shut down")
	return nil
}
