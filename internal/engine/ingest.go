// ABOUTME: Ingestion: embed chunks, flag the ones that fail, and batch-insert into the index
// ABOUTME: Also loads files through the loader and removes documents by id or source
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/loader"
	"github.com/harper/ragcore/internal/models"
	"golang.org/x/sync/errgroup"
)

// ChunkFailure records why a chunk was stored unembedded
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Error   string `json:"error"`
}

// IngestReport is the per-call outcome of adding chunks
type IngestReport struct {
	DocumentID string         `json:"document_id,omitempty"`
	Source     string         `json:"source,omitempty"`
	ChunkIDs   []string       `json:"chunk_ids"`
	Embedded   int            `json:"embedded"`
	Unembedded int            `json:"unembedded"`
	Replaced   int            `json:"replaced,omitempty"`
	Failures   []ChunkFailure `json:"failures,omitempty"`
}

// Chunks returns the number of chunks stored
func (r IngestReport) Chunks() int {
	return len(r.ChunkIDs)
}

// AddDocuments embeds chunks and inserts them in one batch. A chunk whose
// embedding fails is stored with a placeholder vector and flagged
// unembedded, so it stays out of search until EmbedPending succeeds.
func (e *Engine) AddDocuments(ctx context.Context, chunks []models.Chunk) (IngestReport, error) {
	_, release, err := e.acquire()
	if err != nil {
		return IngestReport{}, err
	}
	defer release()
	return e.addChunks(ctx, chunks)
}

func (e *Engine) addChunks(ctx context.Context, chunks []models.Chunk) (IngestReport, error) {
	var report IngestReport
	if len(chunks) == 0 {
		return report, models.Validationf("no chunks to add")
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	results := e.opts.Embedder.EmbedMany(ctx, texts)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%w: ingestion: %w", models.ErrCancelled, err)
	}

	dim := e.index.Config().Dimension
	stored := make([]models.Chunk, len(chunks))
	vectors := make([][]float64, len(chunks))
	for i, ch := range chunks {
		res := results[i]
		if res.Err == nil && len(res.Vector) != dim {
			res.Err = models.Validationf("embedding dimension mismatch: expected %d, got %d", dim, len(res.Vector))
		}
		if res.Err != nil {
			e.logger.Warn("chunk stored unembedded", "chunk", ch.ID, "err", res.Err)
			stored[i] = ch.WithMetadata(models.MetaUnembedded, true).WithMetadata(models.MetaEmbedError, res.Err.Error())
			vectors[i] = index.Placeholder(dim)
			report.Unembedded++
			report.Failures = append(report.Failures, ChunkFailure{ChunkID: ch.ID, Error: res.Err.Error()})
			continue
		}
		stored[i] = ch.WithoutMetadata(models.MetaUnembedded, models.MetaEmbedError)
		vectors[i] = res.Vector
		report.Embedded++
	}

	if err := e.index.AddVectors(stored, vectors); err != nil {
		return IngestReport{}, fmt.Errorf("failed to add chunks: %w", err)
	}
	for _, ch := range stored {
		report.ChunkIDs = append(report.ChunkIDs, ch.ID)
	}

	e.logger.Debug("added chunks", "count", len(stored), "embedded", report.Embedded, "unembedded", report.Unembedded)
	return report, nil
}

// IngestText chunks text and adds the chunks. The document id comes from
// metadata document_id or is generated; source defaults to the file path or
// the document id. Chunks previously stored under the same source are
// replaced once the new chunks are in.
func (e *Engine) IngestText(ctx context.Context, text string, metadata map[string]any) (IngestReport, error) {
	comp, release, err := e.acquire()
	if err != nil {
		return IngestReport{}, err
	}
	defer release()
	return e.ingestText(ctx, comp, text, metadata)
}

func (e *Engine) ingestText(ctx context.Context, comp *components, text string, metadata map[string]any) (IngestReport, error) {
	if strings.TrimSpace(text) == "" {
		return IngestReport{}, models.ErrEmptyInput
	}

	meta := models.CloneMetadata(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	docID := metaString(meta, models.MetaDocumentID)
	if docID == "" {
		docID = "doc_" + uuid.New().String()
		meta[models.MetaDocumentID] = docID
	}
	source := metaString(meta, models.MetaSource)
	if source == "" {
		source = metaString(meta, loader.MetaFilePath)
	}
	if source == "" {
		source = docID
	}
	meta[models.MetaSource] = source

	previous, err := index.IDsByDocument(e.index, source)
	if err != nil {
		return IngestReport{}, err
	}

	chunks, err := comp.chunker.Chunk(text, meta)
	if err != nil {
		return IngestReport{}, err
	}
	report, err := e.addChunks(ctx, chunks)
	if err != nil {
		return report, err
	}
	report.DocumentID = docID
	report.Source = source

	if len(previous) > 0 {
		n, err := e.index.RemoveVectors(previous)
		if err != nil {
			return report, fmt.Errorf("failed to remove previous chunks of %s: %w", source, err)
		}
		report.Replaced = n
		e.logger.Info("replaced previous version", "source", source, "chunks", n)
	}

	e.logger.Info("ingested document", "document", docID, "chunks", report.Chunks(), "unembedded", report.Unembedded)
	return report, nil
}

// IngestFile loads path through the loader and ingests its text
func (e *Engine) IngestFile(ctx context.Context, path string) (IngestReport, error) {
	comp, release, err := e.acquire()
	if err != nil {
		return IngestReport{}, err
	}
	defer release()
	return e.ingestFile(ctx, comp, path)
}

func (e *Engine) ingestFile(ctx context.Context, comp *components, path string) (IngestReport, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return IngestReport{}, err
	}
	report, err := e.ingestText(ctx, comp, doc.Text, doc.Metadata)
	if err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

// IngestFiles ingests paths with bounded parallelism. Every file is
// attempted; the returned error joins the individual failures and the
// reports of failed files are left zero.
func (e *Engine) IngestFiles(ctx context.Context, paths []string) ([]IngestReport, error) {
	comp, release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	reports := make([]IngestReport, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.IngestConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			reports[i], errs[i] = e.ingestFile(gctx, comp, path)
			return nil
		})
	}
	_ = g.Wait()
	return reports, errors.Join(errs...)
}

// EmbedPending retries the embedding of every unembedded entry and clears
// the flag of the ones that succeed
func (e *Engine) EmbedPending(ctx context.Context) (IngestReport, error) {
	_, release, err := e.acquire()
	if err != nil {
		return IngestReport{}, err
	}
	defer release()

	var pending []models.VectorEntry
	for _, entry := range e.index.Entries() {
		if entry.Chunk.IsUnembedded() {
			pending = append(pending, entry)
		}
	}
	var report IngestReport
	if len(pending) == 0 {
		return report, nil
	}

	texts := make([]string, len(pending))
	for i, entry := range pending {
		texts[i] = entry.Chunk.Content
	}
	results := e.opts.Embedder.EmbedMany(ctx, texts)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("%w: embedding pending chunks: %w", models.ErrCancelled, err)
	}

	for i, entry := range pending {
		if err := results[i].Err; err != nil {
			report.Unembedded++
			report.Failures = append(report.Failures, ChunkFailure{ChunkID: entry.ID, Error: err.Error()})
			continue
		}
		if err := e.index.UpdateVector(entry.ID, results[i].Vector, nil); err != nil {
			report.Unembedded++
			report.Failures = append(report.Failures, ChunkFailure{ChunkID: entry.ID, Error: err.Error()})
			continue
		}
		report.Embedded++
		report.ChunkIDs = append(report.ChunkIDs, entry.ID)
	}

	e.logger.Info("embedded pending chunks", "embedded", report.Embedded, "still_pending", report.Unembedded)
	return report, nil
}

// RemoveDocument removes a chunk by id, or every chunk whose document_id or
// source equals key, and returns how many were removed
func (e *Engine) RemoveDocument(key string) (int, error) {
	_, release, err := e.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	if strings.TrimSpace(key) == "" {
		return 0, models.ErrEmptyInput
	}
	if e.index.Has(key) {
		if err := e.index.RemoveVector(key); err != nil {
			return 0, err
		}
		return 1, nil
	}

	ids, err := index.IDsByDocument(e.index, key)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, models.NotFoundf("document %q", key)
	}
	n, err := e.index.RemoveVectors(ids)
	if err != nil {
		return 0, err
	}
	e.logger.Info("removed document", "key", key, "chunks", n)
	return n, nil
}

func metaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
