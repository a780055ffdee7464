package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/genbatech/chie/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDoc(id, logicalType string, createdAt time.Time) *models.ProcessedDocument {
	return &models.ProcessedDocument{
		ID:           id,
		LogicalType:  logicalType,
		OriginalName: id + "." + logicalType,
		Title:        "Title " + id,
		Description:  "Description " + id,
		Content:      "content of " + id,
		CreatedAt:    createdAt,
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("doc-1", "pdf", time.Now().UTC())
	doc.Metadata = models.ExtractionMetadata{PageCount: 3, Title: "PDF Title"}
	chunks := []*models.Chunk{
		{ID: "doc-1_0", DocumentID: "doc-1", Content: "first", ChunkIndex: 0, Embedding: []float32{0.1, 0.2, 0.3}},
		{ID: "doc-1_1", DocumentID: "doc-1", Content: "second", ChunkIndex: 1, Embedding: []float32{0.4, 0.5, 0.6}},
	}
	if err := s.SaveDocumentWithChunks(ctx, doc, chunks); err != nil {
		t.Fatalf("SaveDocumentWithChunks: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.LogicalType != "pdf" || got.Content != "content of doc-1" {
		t.Errorf("got %+v", got)
	}
	if got.Metadata.PageCount != 3 {
		t.Errorf("metadata page count = %d", got.Metadata.PageCount)
	}

	gotChunks, err := s.GetChunksByDocumentID(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if len(gotChunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(gotChunks))
	}
	if gotChunks[0].ChunkIndex != 0 || gotChunks[1].ChunkIndex != 1 {
		t.Errorf("chunks out of order: %v, %v", gotChunks[0].ChunkIndex, gotChunks[1].ChunkIndex)
	}
	emb := gotChunks[1].Embedding
	if len(emb) != 3 || emb[0] != 0.4 || emb[2] != 0.6 {
		t.Errorf("embedding round-trip = %v", emb)
	}
}

func TestGetDocument_notFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveDocumentWithChunks_atomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("doc-1", "pdf", time.Now().UTC())
	// Duplicate chunk IDs force a failure mid-transaction.
	chunks := []*models.Chunk{
		{ID: "dup", DocumentID: "doc-1", Content: "a", ChunkIndex: 0},
		{ID: "dup", DocumentID: "doc-1", Content: "b", ChunkIndex: 1},
	}
	if err := s.SaveDocumentWithChunks(ctx, doc, chunks); err == nil {
		t.Fatal("expected error from duplicate chunk IDs")
	}

	// Neither the document nor any chunk may be visible.
	if _, err := s.GetDocument(ctx, "doc-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("document visible after failed transaction: err = %v", err)
	}
	n, err := s.CountChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %d chunks after failed transaction, want 0", n)
	}
}

func TestListDocuments_ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	// Two documents share a timestamp; insertion order breaks the tie.
	for _, d := range []*models.ProcessedDocument{
		testDoc("old", "txt", base.Add(-time.Hour)),
		testDoc("tie-1", "pdf", base),
		testDoc("tie-2", "xlsx", base),
	} {
		if err := s.SaveDocumentWithChunks(ctx, d, nil); err != nil {
			t.Fatalf("save %s: %v", d.ID, err)
		}
	}

	docs, err := s.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	gotIDs := []string{docs[0].ID, docs[1].ID, docs[2].ID}
	wantIDs := []string{"tie-2", "tie-1", "old"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Fatalf("order = %v, want %v", gotIDs, wantIDs)
		}
	}
}

func TestSearchDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testDoc("a", "pdf", time.Now().UTC())
	a.Title = "Hydraulic pump manual"
	b := testDoc("b", "txt", time.Now().UTC())
	b.Title = "Daily report"
	b.Description = "pump inspection notes"
	c := testDoc("c", "docx", time.Now().UTC())
	c.Title = "Unrelated"
	c.Description = "nothing here"
	for _, d := range []*models.ProcessedDocument{a, b, c} {
		if err := s.SaveDocumentWithChunks(ctx, d, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SearchDocuments(ctx, "pump", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}

	// LIKE metacharacters in the query must be literal.
	got, err = s.SearchDocuments(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results for literal %%, want 0", len(got))
	}
}

func TestLatestByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveDocumentWithChunks(ctx, testDoc("v1", "pdf", base), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDocumentWithChunks(ctx, testDoc("v2", "pdf", base.Add(time.Minute)), nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestByType(ctx, "pdf")
	if err != nil {
		t.Fatalf("LatestByType: %v", err)
	}
	if got.ID != "v2" {
		t.Errorf("latest = %q, want v2", got.ID)
	}

	_, err = s.LatestByType(ctx, "unknown")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDiffs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d1 := &models.VersionDiff{
		ID:              "diff-1",
		LogicalType:     "pdf",
		ComparedAgainst: "v1",
		Segments: []models.DiffSegment{
			{Value: "same\n"},
			{Value: "added\n", Added: true},
		},
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	d2 := &models.VersionDiff{
		ID:          "diff-2",
		LogicalType: "pdf",
		Unavailable: true,
		CreatedAt:   time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC),
	}
	for _, d := range []*models.VersionDiff{d1, d2} {
		if err := s.SaveDiff(ctx, d); err != nil {
			t.Fatalf("SaveDiff: %v", err)
		}
	}

	got, err := s.ListDiffsByType(ctx, "pdf")
	if err != nil {
		t.Fatalf("ListDiffsByType: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d diffs, want 2", len(got))
	}
	if got[0].ID != "diff-2" || !got[0].Unavailable {
		t.Errorf("newest diff = %+v", got[0])
	}
	if got[1].AddedCount() != 1 || got[1].RemovedCount() != 0 {
		t.Errorf("segment counts = %d/%d", got[1].AddedCount(), got[1].RemovedCount())
	}

	empty, err := s.ListDiffsByType(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListDiffsByType: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d diffs for unknown type, want 0", len(empty))
	}
}

func TestDeleteDocument_cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc("doc-1", "pdf", time.Now().UTC())
	chunks := []*models.Chunk{
		{ID: "doc-1_0", DocumentID: "doc-1", Content: "c", ChunkIndex: 0},
	}
	if err := s.SaveDocumentWithChunks(ctx, doc, chunks); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	n, err := s.CountChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %d chunks after delete, want 0", n)
	}

	if err := s.DeleteDocument(ctx, "doc-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDuplicateUploadKeepsBothRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v1 := testDoc("v1", "pdf", base)
	v2 := testDoc("v2", "pdf", base.Add(time.Second))
	v2.Content = v1.Content
	for _, d := range []*models.ProcessedDocument{v1, v2} {
		if err := s.SaveDocumentWithChunks(ctx, d, nil); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("got %d documents, want 2 (audit trail keeps duplicates)", n)
	}
}
