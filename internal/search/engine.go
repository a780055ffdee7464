package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/genbatech/chie/internal/embedding"
	"github.com/genbatech/chie/internal/keyword"
	"github.com/genbatech/chie/internal/models"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
)

// Config tunes the search engine.
type Config struct {
	// TopKCandidates is how many chunk candidates the vector leg retrieves
	// before document aggregation.
	TopKCandidates int
	// DefaultLimit caps results when the query does not set one.
	DefaultLimit int
	// KeywordWeight and SemanticWeight balance the two legs in fusion.
	KeywordWeight  float64
	SemanticWeight float64
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		TopKCandidates: 50,
		DefaultLimit:   10,
		KeywordWeight:  0.3,
		SemanticWeight: 0.7,
	}
}

// Engine runs hybrid search over the knowledge base.
type Engine struct {
	store        store.Store
	embedder     embedding.Embedder
	vectorIndex  vector.Index
	keywordIndex keyword.Index
	config       Config
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	st store.Store,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	cfg Config,
) *Engine {
	if cfg.TopKCandidates <= 0 {
		cfg.TopKCandidates = 50
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.KeywordWeight <= 0 && cfg.SemanticWeight <= 0 {
		cfg.KeywordWeight = 0.3
		cfg.SemanticWeight = 0.7
	}
	return &Engine{
		store:        st,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
	}
}

// Search embeds the query, runs both legs in parallel, and fuses chunk and
// keyword hits into ranked documents. An embedding provider outage surfaces
// as ErrEmbeddingUnavailable so callers can distinguish it from bad input.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return nil, fmt.Errorf("query text is empty: %w", models.ErrMalformedInput)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	var (
		keywordHits  []*keyword.Hit
		semanticHits []*vector.Result
		errChan      = make(chan error, 2)
		wg           sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, err := e.keywordIndex.Search(ctx, text, e.config.TopKCandidates)
		if err != nil {
			errChan <- fmt.Errorf("keyword search failed: %w", err)
			return
		}
		keywordHits = hits
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		queryEmbedding, err := e.embedder.Embed(ctx, text)
		if err != nil {
			errChan <- fmt.Errorf("embed query: %w", err)
			return
		}
		hits, err := e.vectorIndex.Search(ctx, queryEmbedding, e.config.TopKCandidates)
		if err != nil {
			errChan <- fmt.Errorf("vector search failed: %w", err)
			return
		}
		semanticHits = hits
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(
		NormalizeKeywordScores(keywordHits),
		AggregateSemanticByDocument(semanticHits),
		e.config.KeywordWeight,
		e.config.SemanticWeight,
	)

	// Total counts matches after the consistency skip and type filter; chunk
	// excerpts are fetched only for results actually returned.
	matched := make([]*models.SearchResult, 0, len(fused))
	for _, f := range fused {
		doc, err := e.store.GetDocument(ctx, f.DocumentID)
		if err != nil {
			// Index and store can briefly disagree during a rollback; skip.
			continue
		}
		if query.LogicalType != "" && doc.LogicalType != query.LogicalType {
			continue
		}
		result := &models.SearchResult{
			Document: &models.DocumentSummary{
				ID:          doc.ID,
				LogicalType: doc.LogicalType,
				Title:       doc.Title,
				Description: doc.Description,
				CreatedAt:   doc.CreatedAt,
			},
			Score: f.Score,
		}
		if len(matched) < limit && f.BestChunkID != "" {
			if chunk, err := e.store.GetChunk(ctx, f.BestChunkID); err == nil {
				result.BestChunk = chunk.Content
			}
		}
		matched = append(matched, result)
	}

	response := &models.SearchResponse{
		Query: text,
		Total: len(matched),
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	response.Results = matched
	response.TookMS = time.Since(startTime).Milliseconds()
	return response, nil
}
