// Package keyword provides BM25 keyword indexing and search over knowledge
// documents. It is the cheap pre-filter leg of search fusion, distinct from
// the embedding index.
package keyword

import (
	"context"

	"github.com/genbatech/chie/internal/models"
)

// Index defines keyword search operations.
type Index interface {
	Index(ctx context.Context, doc *models.ProcessedDocument) error
	Search(ctx context.Context, query string, limit int) ([]*Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Hit is a single keyword search result.
type Hit struct {
	DocumentID string
	Score      float64
}
