package keyword

import (
	"context"
	"testing"

	"github.com/genbatech/chie/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemoryBleveIndex()
	if err != nil {
		t.Fatalf("NewMemoryBleveIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	docs := []*models.ProcessedDocument{
		{ID: "d1", Title: "brake_maintenance_manual", Content: "brake pad replacement procedure"},
		{ID: "d2", Title: "coolant guide", Content: "coolant flush intervals"},
	}
	for _, d := range docs {
		if err := idx.Index(ctx, d); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	hits, err := idx.Search(ctx, "brake", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "d1" {
		t.Errorf("hits = %+v, want d1 only", hits)
	}
}

func TestSearch_titleUnderscores(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	doc := &models.ProcessedDocument{ID: "d1", Title: "hydraulic_pump_manual", Content: "unrelated body"}
	if err := idx.Index(ctx, doc); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search(ctx, "hydraulic pump", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("underscored title not matched: %+v", hits)
	}
}

func TestSearch_titleOutranksContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	for _, d := range []*models.ProcessedDocument{
		{ID: "title-hit", Title: "compressor overview", Content: "general notes"},
		{ID: "content-hit", Title: "misc notes", Content: "mentions compressor once in the body"},
	} {
		if err := idx.Index(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := idx.Search(ctx, "compressor", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].DocumentID != "title-hit" {
		t.Errorf("top hit = %q, want title-hit", hits[0].DocumentID)
	}
}

func TestDelete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	doc := &models.ProcessedDocument{ID: "d1", Title: "valve manual", Content: "valve seating"}
	if err := idx.Index(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	hits, err := idx.Search(ctx, "valve", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("hits after delete = %+v", hits)
	}
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("doc count = %d, want 0", n)
	}
}
