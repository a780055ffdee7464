package models

// SearchQuery is a semantic search request against the knowledge base.
type SearchQuery struct {
	Text string `json:"text"`
	// Limit caps the number of returned documents. Zero means the engine default.
	Limit int `json:"limit,omitempty"`
	// LogicalType restricts results to one logical document type when set.
	LogicalType string `json:"logical_type,omitempty"`
}

// SearchResult is one ranked document in a search response.
type SearchResult struct {
	Document *DocumentSummary `json:"document"`
	// Score is the fused relevance in [0,1], higher is better.
	Score float64 `json:"score"`
	// BestChunk is the highest-scoring chunk excerpt for display.
	BestChunk string `json:"best_chunk,omitempty"`
}

// SearchResponse is the full response of the search engine.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
	// Total counts every matching document; at most the limit are returned.
	Total  int   `json:"total"`
	TookMS int64 `json:"took_ms"`
}
