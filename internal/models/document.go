// Package models defines core data structures for knowledge documents,
// version diffs, chunks, and analysis results.
package models

import (
	"encoding/json"
	"time"
)

// ContentKind identifies the shape of extracted content.
type ContentKind string

const (
	// KindText is plain extracted text (txt, pdf, docx).
	KindText ContentKind = "text"
	// KindStructured is parsed JSON content.
	KindStructured ContentKind = "structured"
	// KindTabular is spreadsheet content (ordered sheets of row maps).
	KindTabular ContentKind = "tabular"
	// KindImage is image content (metadata plus optimized copy, no text).
	KindImage ContentKind = "image"
)

// SheetData is one spreadsheet sheet: ordered rows of column name -> cell value.
type SheetData struct {
	Name string              `json:"name"`
	Rows []map[string]string `json:"rows"`
}

// ImageInfo holds pixel metadata for an ingested image.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// ExtractionMetadata carries format-specific metadata produced during extraction.
type ExtractionMetadata struct {
	PageCount         int        `json:"page_count,omitempty"`
	SheetNames        []string   `json:"sheet_names,omitempty"`
	Title             string     `json:"title,omitempty"`
	Author            string     `json:"author,omitempty"`
	LowTextConfidence bool       `json:"low_text_confidence,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
	Image             *ImageInfo `json:"image,omitempty"`
	// OptimizedRef is the blob locator of the re-encoded image copy.
	OptimizedRef string `json:"optimized_ref,omitempty"`
	// OriginalRef is the blob locator of the retained original, when requested.
	OriginalRef string `json:"original_ref,omitempty"`
}

// ExtractedContent is the normalized output of the format extractor.
type ExtractedContent struct {
	Kind       ContentKind        `json:"kind"`
	Text       string             `json:"text,omitempty"`
	Structured json.RawMessage    `json:"structured,omitempty"`
	Sheets     []SheetData        `json:"sheets,omitempty"`
	Optimized  []byte             `json:"-"`
	Metadata   ExtractionMetadata `json:"metadata"`
}

// ProcessedDocument is one stored version of a knowledge document.
// Rows are append-only: a re-upload creates a new document, never an update.
type ProcessedDocument struct {
	ID           string             `json:"id"`
	LogicalType  string             `json:"logical_type"`
	OriginalName string             `json:"original_name"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Content      string             `json:"content"`
	Structured   json.RawMessage    `json:"structured,omitempty"`
	Metadata     ExtractionMetadata `json:"metadata"`
	CreatedAt    time.Time          `json:"created_at"`
}

// DocumentSummary is the listing view of a ProcessedDocument.
type DocumentSummary struct {
	ID          string    `json:"id"`
	LogicalType string    `json:"logical_type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is a bounded slice of a document's content, the unit of embedding.
// Chunk IDs are deterministic (docID_index) so re-chunking is reproducible.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// DiffSegment is a maximal run of contiguous lines sharing one status.
// At most one of Added/Removed is true; both false means unchanged.
type DiffSegment struct {
	Value   string `json:"value"`
	Added   bool   `json:"added"`
	Removed bool   `json:"removed"`
}

// VersionDiff records the line-level delta between two successive uploads of
// the same logical type. Identical content still produces a diff with zero
// added/removed segments: observable evidence that a re-upload changed nothing.
type VersionDiff struct {
	ID          string `json:"id"`
	LogicalType string `json:"logical_type"`
	// ComparedAgainst is the prior ProcessedDocument id.
	ComparedAgainst string        `json:"compared_against,omitempty"`
	Segments        []DiffSegment `json:"segments"`
	// Unavailable marks a diff that could not be computed (corrupt prior
	// content); the new document is stored regardless.
	Unavailable bool      `json:"unavailable,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddedCount returns the number of added segments.
func (d *VersionDiff) AddedCount() int {
	n := 0
	for _, s := range d.Segments {
		if s.Added {
			n++
		}
	}
	return n
}

// RemovedCount returns the number of removed segments.
func (d *VersionDiff) RemovedCount() int {
	n := 0
	for _, s := range d.Segments {
		if s.Removed {
			n++
		}
	}
	return n
}
