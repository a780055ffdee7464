// Package search provides hybrid (keyword + semantic) document search and
// result fusion.
package search

import (
	"sort"

	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/vector"
)

// FusedResult holds a document ID and fused keyword/semantic scores.
type FusedResult struct {
	DocumentID    string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
	// BestChunkID is the closest chunk of the document, for display.
	BestChunkID string
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(hits []*keyword.Hit) map[string]float64 {
	normalized := make(map[string]float64)
	if len(hits) == 0 {
		return normalized
	}
	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	for _, h := range hits {
		if maxScore > 0 {
			normalized[h.DocumentID] = h.Score / maxScore
		}
	}
	return normalized
}

// docSemantic is a document's best-chunk semantic hit.
type docSemantic struct {
	score   float64
	chunkID string
}

// AggregateSemanticByDocument reduces chunk hits to one score per document,
// keeping the closest chunk. Similarity = 1 - cosine distance.
func AggregateSemanticByDocument(hits []*vector.Result) map[string]docSemantic {
	byDoc := make(map[string]docSemantic)
	for _, h := range hits {
		score := 1 - h.Distance
		if best, ok := byDoc[h.DocumentID]; !ok || score > best.score {
			byDoc[h.DocumentID] = docSemantic{score: score, chunkID: h.ChunkID}
		}
	}
	return byDoc
}

// Fuse merges keyword and semantic score maps with weights and returns
// results sorted by fused score, ties broken by document ID for determinism.
func Fuse(keywordScores map[string]float64, semanticScores map[string]docSemantic, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{DocumentID: id, KeywordScore: score}
	}
	for id, sem := range semanticScores {
		if result, exists := scoreMap[id]; exists {
			result.SemanticScore = sem.score
			result.BestChunkID = sem.chunkID
		} else {
			scoreMap[id] = &FusedResult{DocumentID: id, SemanticScore: sem.score, BestChunkID: sem.chunkID}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = keywordWeight*result.KeywordScore + semanticWeight*result.SemanticScore
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	return results
}
