// Package store defines persistence for knowledge documents, their chunks,
// and version diffs.
package store

import (
	"context"

	"github.com/genbatech/chie/internal/models"
)

// Store defines document, chunk, and diff persistence operations.
type Store interface {
	// Document operations. Documents are append-only: identity is the
	// creation event, never the logical type, so re-uploads create new rows.
	SaveDocumentWithChunks(ctx context.Context, doc *models.ProcessedDocument, chunks []*models.Chunk) error
	GetDocument(ctx context.Context, id string) (*models.ProcessedDocument, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.DocumentSummary, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]*models.DocumentSummary, error)
	LatestByType(ctx context.Context, logicalType string) (*models.ProcessedDocument, error)

	// Diff operations
	SaveDiff(ctx context.Context, diff *models.VersionDiff) error
	ListDiffsByType(ctx context.Context, logicalType string) ([]*models.VersionDiff, error)

	// Chunk operations
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
