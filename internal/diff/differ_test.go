package diff

import (
	"context"
	"testing"

	"github.com/genbatech/chie/internal/models"
)

type fakeLookup struct {
	doc *models.ProcessedDocument
	err error
}

func (f *fakeLookup) LatestByType(ctx context.Context, logicalType string) (*models.ProcessedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func TestCompute_identical(t *testing.T) {
	segs := Compute("line one\nline two\n", "line one\nline two\n")
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Added || segs[0].Removed {
		t.Errorf("identical content produced changed segment: %+v", segs[0])
	}
}

func TestCompute_empty(t *testing.T) {
	if segs := Compute("", ""); len(segs) != 0 {
		t.Errorf("got %d segments for empty inputs, want 0", len(segs))
	}
}

func TestCompute_addRemove(t *testing.T) {
	before := "alpha\nbeta\ngamma\n"
	after := "alpha\ndelta\ngamma\n"
	segs := Compute(before, after)

	var added, removed, unchanged int
	for _, s := range segs {
		switch {
		case s.Added:
			added++
			if s.Value != "delta\n" {
				t.Errorf("added segment = %q", s.Value)
			}
		case s.Removed:
			removed++
			if s.Value != "beta\n" {
				t.Errorf("removed segment = %q", s.Value)
			}
		default:
			unchanged++
		}
	}
	if added != 1 || removed != 1 {
		t.Errorf("added=%d removed=%d, want 1 and 1", added, removed)
	}
	if unchanged == 0 {
		t.Error("expected unchanged context segments")
	}
}

func TestCompute_maximalRuns(t *testing.T) {
	before := "a\nb\nc\n"
	after := "a\nb\nc\nd\ne\nf\n"
	segs := Compute(before, after)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 (unchanged + one added run): %+v", len(segs), segs)
	}
	if !segs[1].Added || segs[1].Value != "d\ne\nf\n" {
		t.Errorf("added run = %+v", segs[1])
	}
}

func TestCompute_reconstruction(t *testing.T) {
	before := "one\ntwo\nthree\n"
	after := "zero\none\nthree\nfour\n"
	segs := Compute(before, after)

	var gotBefore, gotAfter string
	for _, s := range segs {
		if !s.Added {
			gotBefore += s.Value
		}
		if !s.Removed {
			gotAfter += s.Value
		}
	}
	if gotBefore != before {
		t.Errorf("non-added segments = %q, want %q", gotBefore, before)
	}
	if gotAfter != after {
		t.Errorf("non-removed segments = %q, want %q", gotAfter, after)
	}
}

func TestForUpload_noPrior(t *testing.T) {
	d := NewDiffer(&fakeLookup{err: models.ErrNotFound})
	vd, err := d.ForUpload(context.Background(), "txt", "content")
	if err != nil {
		t.Fatalf("ForUpload: %v", err)
	}
	if vd != nil {
		t.Errorf("got diff %+v for first upload, want nil", vd)
	}
}

func TestForUpload_identicalContent(t *testing.T) {
	prior := &models.ProcessedDocument{ID: "doc-1", Content: "same\ncontent\n"}
	d := NewDiffer(&fakeLookup{doc: prior})
	vd, err := d.ForUpload(context.Background(), "txt", "same\ncontent\n")
	if err != nil {
		t.Fatalf("ForUpload: %v", err)
	}
	if vd == nil {
		t.Fatal("expected a diff record for a re-upload")
	}
	if vd.ComparedAgainst != "doc-1" {
		t.Errorf("compared against %q", vd.ComparedAgainst)
	}
	if vd.AddedCount() != 0 || vd.RemovedCount() != 0 {
		t.Errorf("added=%d removed=%d, want 0 and 0", vd.AddedCount(), vd.RemovedCount())
	}
}

func TestForUpload_unreadablePrior(t *testing.T) {
	prior := &models.ProcessedDocument{ID: "doc-1", Content: "bad\x80bytes"}
	d := NewDiffer(&fakeLookup{doc: prior})
	vd, err := d.ForUpload(context.Background(), "txt", "new content")
	if err != nil {
		t.Fatalf("ForUpload: %v", err)
	}
	if vd == nil || !vd.Unavailable {
		t.Fatalf("got %+v, want diff marked Unavailable", vd)
	}
}
