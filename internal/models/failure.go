package models

import "time"

// Diagnostics is the structured part of a failure report.
type Diagnostics struct {
	PrimaryProblem     string   `json:"primary_problem"`
	ProblemDescription string   `json:"problem_description"`
	Components         []string `json:"components"`
	Severity           string   `json:"severity,omitempty"`
}

// FailureReport is created by the surrounding application and passed into the
// correlator as input only; this core never stores or mutates it.
type FailureReport struct {
	ID          string      `json:"id"`
	MachineID   string      `json:"machine_id"`
	Timestamp   time.Time   `json:"timestamp"`
	SymptomText string      `json:"symptom_text"`
	Diagnostics Diagnostics `json:"diagnostics"`
	ImageRefs   []string    `json:"image_refs,omitempty"`
}

// RiskLevel is the three-bucket severity classification of a failure.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// DocumentRelevance pairs a knowledge document with its relevance score in [0,1].
type DocumentRelevance struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// AnalysisResult is the outcome of correlating a failure report with the
// knowledge base. It is created per invocation and never mutated.
type AnalysisResult struct {
	FailureID               string              `json:"failure_id"`
	RankedDocuments         []DocumentRelevance `json:"ranked_documents"`
	SuggestedActions        []string            `json:"suggested_actions"`
	RiskLevel               RiskLevel           `json:"risk_level"`
	EstimatedResolutionTime string              `json:"estimated_resolution_time"`
	// Narrative is free-form text from the LLM provider, passed through
	// opaquely. Empty when no provider is configured or the call failed.
	Narrative string    `json:"narrative,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
