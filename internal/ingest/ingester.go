package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/blob"
	"github.com/genbatech/chie/internal/diff"
	"github.com/genbatech/chie/internal/embedding"
	"github.com/genbatech/chie/internal/extract"
	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/models"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
)

// embedBatchSize caps chunks per embedding request.
const embedBatchSize = 100

// Ingester runs the full upload pipeline: extract, diff, chunk, embed,
// persist, index. Documents become visible all at once or not at all.
type Ingester struct {
	store        store.Store
	blobs        blob.Store
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	extractor    *extract.Extractor
	differ       *diff.Differ
	chunker      *Chunker
	logger       *zap.Logger // optional; when set, logs pipeline events

	// halted is set on a dimension mismatch. Further ingestion is refused
	// until an operator resolves the configuration and calls Reset.
	halted atomic.Bool
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets a logger for pipeline events (document ingested, rollback, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingester) { ing.logger = l }
}

// NewIngester creates an ingester with the given dependencies.
func NewIngester(
	st store.Store,
	blobs blob.Store,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	chunker *Chunker,
	opts ...Option,
) *Ingester {
	ing := &Ingester{
		store:        st,
		blobs:        blobs,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		extractor:    extract.NewExtractor(),
		differ:       diff.NewDiffer(st),
		chunker:      chunker,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Halted reports whether ingestion is suspended after a dimension mismatch.
func (ing *Ingester) Halted() bool {
	return ing.halted.Load()
}

// Reset clears the halted state after the operator has fixed the embedding
// configuration.
func (ing *Ingester) Reset() {
	ing.halted.Store(false)
}

// IngestFile ingests the file at path. The logical type is derived from the
// file name.
func (ing *Ingester) IngestFile(ctx context.Context, path string, retainOriginal bool) (*models.ProcessedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ing.IngestBytes(ctx, filepath.Base(path), content, retainOriginal)
}

// IngestBytes runs the pipeline on raw upload bytes. On success the document,
// its chunks, its version diff, and its index entries are all visible; on any
// failure none of them are.
func (ing *Ingester) IngestBytes(ctx context.Context, filename string, content []byte, retainOriginal bool) (*models.ProcessedDocument, error) {
	if ing.halted.Load() {
		return nil, models.ErrIngestHalted
	}

	ext := strings.ToLower(filepath.Ext(filename))
	logicalType := logicalTypeFor(filename)

	extracted, err := ing.extractor.Extract(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	// Images carry no comparable text; everything else is diffed against the
	// latest prior version of the same logical type.
	var versionDiff *models.VersionDiff
	if !extract.IsImageExt(ext) {
		versionDiff, err = ing.differ.ForUpload(ctx, logicalType, extracted.Text)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", filename, err)
		}
	}

	if len(extracted.Optimized) > 0 {
		locator, err := ing.blobs.Put(extracted.Optimized, ".jpg")
		if err != nil {
			return nil, fmt.Errorf("store optimized image: %w", err)
		}
		extracted.Metadata.OptimizedRef = locator
	}
	if retainOriginal {
		locator, err := ing.blobs.Put(content, ext)
		if err != nil {
			return nil, fmt.Errorf("store original: %w", err)
		}
		extracted.Metadata.OriginalRef = locator
	}

	doc := &models.ProcessedDocument{
		ID:           uuid.New().String(),
		LogicalType:  logicalType,
		OriginalName: filename,
		Title:        titleFor(filename, extracted),
		Description:  describe(extracted),
		Content:      extracted.Text,
		Structured:   extracted.Structured,
		Metadata:     extracted.Metadata,
		CreatedAt:    time.Now().UTC(),
	}

	chunks := ing.buildChunks(doc)
	if err := ing.embedChunks(ctx, chunks); err != nil {
		ing.haltOnMismatch(err)
		return nil, err
	}

	if err := ing.store.SaveDocumentWithChunks(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if err := ing.indexChunks(ctx, doc, chunks); err != nil {
		// Roll the document back so no half-indexed state survives.
		ing.rollback(ctx, doc, chunks)
		ing.haltOnMismatch(err)
		return nil, err
	}

	if versionDiff != nil {
		if err := ing.store.SaveDiff(ctx, versionDiff); err != nil {
			ing.rollback(ctx, doc, chunks)
			return nil, fmt.Errorf("persist diff: %w", err)
		}
	}

	if ing.logger != nil {
		ing.logger.Info("document ingested",
			zap.String("id", doc.ID),
			zap.String("logical_type", doc.LogicalType),
			zap.Int("chunks", len(chunks)),
			zap.Bool("diffed", versionDiff != nil),
		)
	}
	return doc, nil
}

// Delete removes a document and every trace of it: vector entries, the
// keyword entry, retained blobs, and the store rows. Returns
// models.ErrNotFound when no such document exists.
func (ing *Ingester) Delete(ctx context.Context, id string) error {
	doc, err := ing.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	chunks, err := ing.store.GetChunksByDocumentID(ctx, id)
	if err != nil {
		return fmt.Errorf("load chunks for %s: %w", id, err)
	}
	if len(chunks) > 0 {
		chunkIDs := make([]string, len(chunks))
		for i, ch := range chunks {
			chunkIDs[i] = ch.ID
		}
		if err := ing.vectorIndex.Remove(ctx, chunkIDs); err != nil {
			return fmt.Errorf("remove vectors for %s: %w", id, err)
		}
	}
	if err := ing.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove keyword entry for %s: %w", id, err)
	}
	for _, locator := range []string{doc.Metadata.OriginalRef, doc.Metadata.OptimizedRef} {
		if locator == "" {
			continue
		}
		if err := ing.blobs.Delete(locator); err != nil && ing.logger != nil {
			ing.logger.Warn("delete blob", zap.String("id", id), zap.String("locator", locator), zap.Error(err))
		}
	}
	if err := ing.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if ing.logger != nil {
		ing.logger.Info("document deleted", zap.String("id", id), zap.Int("chunks", len(chunks)))
	}
	return nil
}

// buildChunks chunks the document content with deterministic chunk IDs, so a
// repeated run over the same document yields the same IDs. Images have no
// text and produce no chunks.
func (ing *Ingester) buildChunks(doc *models.ProcessedDocument) []*models.Chunk {
	if doc.Content == "" {
		return nil
	}
	pieces := ing.chunker.Chunk(doc.Content)
	chunks := make([]*models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &models.Chunk{
			ID:         doc.ID + "_" + strconv.Itoa(i),
			DocumentID: doc.ID,
			Content:    p,
			ChunkIndex: i,
			CreatedAt:  doc.CreatedAt,
		}
	}
	return chunks
}

func (ing *Ingester) embedChunks(ctx context.Context, chunks []*models.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}
	}
	return nil
}

func (ing *Ingester) indexChunks(ctx context.Context, doc *models.ProcessedDocument, chunks []*models.Chunk) error {
	if len(chunks) > 0 {
		entries := make([]vector.Entry, len(chunks))
		for i, ch := range chunks {
			entries[i] = vector.Entry{ChunkID: ch.ID, DocumentID: ch.DocumentID, Vector: ch.Embedding}
		}
		if err := ing.vectorIndex.Add(ctx, entries); err != nil {
			return fmt.Errorf("index vectors: %w", err)
		}
	}
	if err := ing.keywordIndex.Index(ctx, doc); err != nil {
		return fmt.Errorf("index keywords: %w", err)
	}
	return nil
}

// haltOnMismatch suspends ingestion when err carries a dimension mismatch.
func (ing *Ingester) haltOnMismatch(err error) {
	if !errors.Is(err, models.ErrDimensionMismatch) {
		return
	}
	ing.halted.Store(true)
	if ing.logger != nil {
		ing.logger.Error("ingestion halted on dimension mismatch", zap.Error(err))
	}
}

// rollback removes everything a failed ingest may have made visible. Errors
// here are logged and swallowed; the caller already has the primary failure.
func (ing *Ingester) rollback(ctx context.Context, doc *models.ProcessedDocument, chunks []*models.Chunk) {
	chunkIDs := make([]string, len(chunks))
	for i, ch := range chunks {
		chunkIDs[i] = ch.ID
	}
	if err := ing.vectorIndex.Remove(ctx, chunkIDs); err != nil && ing.logger != nil {
		ing.logger.Warn("rollback: remove vectors", zap.String("id", doc.ID), zap.Error(err))
	}
	if err := ing.keywordIndex.Delete(ctx, doc.ID); err != nil && ing.logger != nil {
		ing.logger.Warn("rollback: remove keywords", zap.String("id", doc.ID), zap.Error(err))
	}
	if err := ing.store.DeleteDocument(ctx, doc.ID); err != nil && !errors.Is(err, models.ErrNotFound) && ing.logger != nil {
		ing.logger.Warn("rollback: delete document", zap.String("id", doc.ID), zap.Error(err))
	}
}

// logicalTypeFor derives the versioning key from a file name: the lowercased
// extension without the dot ("json", "pdf"). Uploads sharing it form one
// version history.
func logicalTypeFor(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// titleFor prefers embedded document metadata over the file name.
func titleFor(filename string, extracted *models.ExtractedContent) string {
	if extracted.Metadata.Title != "" {
		return extracted.Metadata.Title
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// describe produces a short listing description from the content head.
func describe(extracted *models.ExtractedContent) string {
	if extracted.Kind == models.KindImage && extracted.Metadata.Image != nil {
		return fmt.Sprintf("%s image %dx%d",
			extracted.Metadata.Image.Format,
			extracted.Metadata.Image.Width,
			extracted.Metadata.Image.Height)
	}
	text := strings.TrimSpace(extracted.Text)
	runes := []rune(text)
	if len(runes) > 200 {
		text = string(runes[:200])
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}
