package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for small knowledge bases (<10k chunks).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant uses a Qdrant server over gRPC for larger deployments.
	IndexTypeQdrant IndexType = "qdrant"
)

// Options configures index construction.
type Options struct {
	Dimensions int
	// QdrantAddr is the gRPC address of the Qdrant server, required for qdrant.
	QdrantAddr string
	// QdrantCollection names the collection, required for qdrant.
	QdrantCollection string
}

// NewIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "qdrant".
func NewIndex(ctx context.Context, indexType string, opts Options) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(opts.Dimensions)
	case IndexTypeQdrant:
		if opts.QdrantAddr == "" {
			return nil, fmt.Errorf("qdrant index requires an address")
		}
		collection := opts.QdrantCollection
		if collection == "" {
			collection = "chie_chunks"
		}
		return NewQdrantIndex(ctx, opts.QdrantAddr, collection, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", indexType)
	}
}
