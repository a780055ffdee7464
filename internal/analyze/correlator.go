package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genbatech/chie/internal/embedding"
	"github.com/genbatech/chie/internal/models"
	"github.com/genbatech/chie/internal/store"
	"github.com/genbatech/chie/internal/vector"
)

const (
	// semanticWeight and lexicalWeight combine chunk similarity with
	// component-term overlap into one relevance score.
	semanticWeight = 0.7
	lexicalWeight  = 0.3
)

// NarrativeProvider generates free-form analysis text. Output is passed
// through opaquely; a failure degrades to an empty narrative.
type NarrativeProvider interface {
	Narrative(ctx context.Context, report *models.FailureReport, ranked []models.DocumentRelevance) (string, error)
}

// Correlator scores knowledge documents against failure reports. Reports are
// inputs only; the correlator never stores them.
type Correlator struct {
	store     store.Store
	embedder  embedding.Embedder
	narrative NarrativeProvider // optional
	logger    *zap.Logger       // optional
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithNarrativeProvider adds an LLM narrative to analysis results.
func WithNarrativeProvider(p NarrativeProvider) Option {
	return func(c *Correlator) { c.narrative = p }
}

// WithLogger sets a logger for correlation events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// NewCorrelator creates a correlator over the given store and embedder.
func NewCorrelator(st store.Store, embedder embedding.Embedder, opts ...Option) *Correlator {
	c := &Correlator{store: st, embedder: embedder}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correlate ranks the candidate documents by relevance to the report and
// derives risk, resolution time, and suggested actions. The symptom text is
// embedded exactly once; chunk vectors come from the store, never from
// re-embedding.
func (c *Correlator) Correlate(ctx context.Context, report *models.FailureReport, candidateIDs []string) (*models.AnalysisResult, error) {
	symptom := strings.TrimSpace(report.SymptomText)
	if symptom == "" {
		symptom = strings.TrimSpace(report.Diagnostics.PrimaryProblem)
	}
	if symptom == "" {
		return nil, fmt.Errorf("failure report has no symptom text: %w", models.ErrMalformedInput)
	}

	symptomVec, err := c.embedder.Embed(ctx, symptom)
	if err != nil {
		return nil, fmt.Errorf("embed symptom: %w", err)
	}
	symptomVec = vector.Normalize(symptomVec)

	ranked := make([]models.DocumentRelevance, 0, len(candidateIDs))
	titles := make(map[string]string, len(candidateIDs))
	for _, id := range candidateIDs {
		doc, err := c.store.GetDocument(ctx, id)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("skip unknown candidate", zap.String("id", id), zap.Error(err))
			}
			continue
		}
		chunks, err := c.store.GetChunksByDocumentID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", id, err)
		}

		semantic := bestChunkSimilarity(symptomVec, chunks)
		lexical := componentOverlap(report.Diagnostics.Components, doc)
		score := semanticWeight*semantic + lexicalWeight*lexical
		ranked = append(ranked, models.DocumentRelevance{DocumentID: id, Score: score})
		titles[id] = doc.Title
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DocumentID < ranked[j].DocumentID
	})

	risk := DeriveRisk(report)
	topTitles := make([]string, 0, 2)
	for _, r := range ranked {
		if len(topTitles) >= 2 {
			break
		}
		topTitles = append(topTitles, titles[r.DocumentID])
	}

	result := &models.AnalysisResult{
		FailureID:               report.ID,
		RankedDocuments:         ranked,
		SuggestedActions:        SuggestActions(risk, report.Diagnostics.Components, topTitles),
		RiskLevel:               risk,
		EstimatedResolutionTime: EstimateResolutionTime(risk, len(report.Diagnostics.Components)),
		CreatedAt:               time.Now().UTC(),
	}

	if c.narrative != nil {
		text, err := c.narrative.Narrative(ctx, report, ranked)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("narrative provider failed", zap.Error(err))
			}
		} else {
			result.Narrative = text
		}
	}
	return result, nil
}

// bestChunkSimilarity returns the highest cosine similarity between the
// symptom vector and any stored chunk vector, in [0,1]. Documents without
// embedded chunks (images) score zero on the semantic leg.
func bestChunkSimilarity(symptomVec []float32, chunks []*models.Chunk) float64 {
	best := 0.0
	for _, ch := range chunks {
		if len(ch.Embedding) != len(symptomVec) {
			continue
		}
		sim := vector.InnerProduct(symptomVec, vector.Normalize(ch.Embedding))
		if sim > best {
			best = sim
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// componentOverlap returns the fraction of diagnosed components that appear
// in the document title or content, case-insensitive.
func componentOverlap(components []string, doc *models.ProcessedDocument) float64 {
	if len(components) == 0 {
		return 0
	}
	haystack := strings.ToLower(doc.Title + "\n" + doc.Content)
	matched := 0
	for _, comp := range components {
		comp = strings.ToLower(strings.TrimSpace(comp))
		if comp != "" && strings.Contains(haystack, comp) {
			matched++
		}
	}
	return float64(matched) / float64(len(components))
}
