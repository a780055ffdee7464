package search

import (
	"testing"

	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/vector"
)

func TestNormalizeKeywordScores(t *testing.T) {
	scores := NormalizeKeywordScores([]*keyword.Hit{
		{DocumentID: "a", Score: 4},
		{DocumentID: "b", Score: 2},
	})
	if scores["a"] != 1.0 || scores["b"] != 0.5 {
		t.Errorf("scores = %v", scores)
	}
	if len(NormalizeKeywordScores(nil)) != 0 {
		t.Error("nil input should normalize to empty map")
	}
}

func TestAggregateSemanticByDocument_bestChunkWins(t *testing.T) {
	byDoc := AggregateSemanticByDocument([]*vector.Result{
		{ChunkID: "d1_0", DocumentID: "d1", Distance: 0.4},
		{ChunkID: "d1_1", DocumentID: "d1", Distance: 0.1},
		{ChunkID: "d2_0", DocumentID: "d2", Distance: 0.3},
	})
	if len(byDoc) != 2 {
		t.Fatalf("got %d documents", len(byDoc))
	}
	if byDoc["d1"].chunkID != "d1_1" {
		t.Errorf("best chunk = %q, want d1_1", byDoc["d1"].chunkID)
	}
	if got := byDoc["d1"].score; got < 0.89 || got > 0.91 {
		t.Errorf("score = %f, want 0.9", got)
	}
}

func TestFuse_ordersAndBreaksTies(t *testing.T) {
	results := Fuse(
		map[string]float64{"kw-only": 1.0, "both": 0.5},
		map[string]docSemantic{
			"both":     {score: 0.8, chunkID: "both_0"},
			"sem-only": {score: 0.9, chunkID: "sem_0"},
		},
		0.3, 0.7,
	)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	// both: 0.3*0.5 + 0.7*0.8 = 0.71; sem-only: 0.63; kw-only: 0.30
	if results[0].DocumentID != "both" || results[1].DocumentID != "sem-only" || results[2].DocumentID != "kw-only" {
		t.Errorf("order = %s, %s, %s", results[0].DocumentID, results[1].DocumentID, results[2].DocumentID)
	}
	if results[0].BestChunkID != "both_0" {
		t.Errorf("best chunk = %q", results[0].BestChunkID)
	}

	// Equal scores fall back to ID order.
	tied := Fuse(
		map[string]float64{"zeta": 1.0, "alpha": 1.0},
		nil,
		1.0, 0,
	)
	if tied[0].DocumentID != "alpha" {
		t.Errorf("tie-break order = %s, %s", tied[0].DocumentID, tied[1].DocumentID)
	}
}
