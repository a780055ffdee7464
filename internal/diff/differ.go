// Package diff computes line-level deltas between successive uploads of the
// same logical document type.
package diff

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/genbatech/chie/internal/models"
)

// PriorLookup resolves the most recent stored document of a logical type.
type PriorLookup interface {
	LatestByType(ctx context.Context, logicalType string) (*models.ProcessedDocument, error)
}

// Differ compares a new upload against the latest prior version of its type.
type Differ struct {
	store PriorLookup
}

// NewDiffer returns a Differ backed by the given lookup.
func NewDiffer(store PriorLookup) *Differ {
	return &Differ{store: store}
}

// Compute returns the line-level delta between before and after as maximal
// runs of contiguous lines sharing one status. Identical inputs yield a single
// unchanged segment (or none for empty inputs).
func Compute(before, after string) []models.DiffSegment {
	dmp := diffmatchpatch.New()
	oldChars, newChars, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	segments := make([]models.DiffSegment, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		seg := models.DiffSegment{Value: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			seg.Added = true
		case diffmatchpatch.DiffDelete:
			seg.Removed = true
		}
		// Merge with the previous segment when the status matches so runs
		// stay maximal.
		if n := len(segments); n > 0 &&
			segments[n-1].Added == seg.Added && segments[n-1].Removed == seg.Removed {
			segments[n-1].Value += seg.Value
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// ForUpload diffs newContent against the latest stored version of logicalType.
// Returns (nil, nil) when no prior version exists: the first upload of a type
// has nothing to compare against. A prior version whose content cannot be
// read yields a diff marked Unavailable rather than an error, so ingestion of
// the new version proceeds.
func (d *Differ) ForUpload(ctx context.Context, logicalType, newContent string) (*models.VersionDiff, error) {
	prior, err := d.store.LatestByType(ctx, logicalType)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup prior version of %q: %w", logicalType, err)
	}

	vd := &models.VersionDiff{
		ID:              uuid.New().String(),
		LogicalType:     logicalType,
		ComparedAgainst: prior.ID,
		CreatedAt:       time.Now().UTC(),
	}
	if !utf8.ValidString(prior.Content) {
		vd.Unavailable = true
		return vd, nil
	}
	vd.Segments = Compute(prior.Content, newContent)
	return vd, nil
}
