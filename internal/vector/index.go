// Package vector provides chunk embedding indices and similarity search.
package vector

import "context"

// Entry is one chunk vector to be indexed.
type Entry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
}

// Result is a single similarity search hit.
type Result struct {
	ChunkID    string
	DocumentID string
	// Distance is cosine distance (1 - cosine similarity): 0 is identical,
	// lower is closer.
	Distance float64
}

// Index defines vector storage and similarity search over chunk embeddings.
type Index interface {
	Add(ctx context.Context, entries []Entry) error
	// Search returns the k nearest entries ordered by ascending distance.
	// Entries at equal distance keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, chunkIDs []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}
