package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/genbatech/chie/internal/models"
)

// extractJSON parses content and re-serializes it in canonical form (sorted
// object keys, two-space indent) so that semantically identical uploads diff
// as identical regardless of original key order or whitespace.
func extractJSON(content []byte) (*models.ExtractedContent, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse JSON: %w: %w", models.ErrMalformedInput, err)
	}
	// Reject trailing garbage after the first value.
	if dec.More() {
		return nil, fmt.Errorf("parse JSON: trailing data: %w", models.ErrMalformedInput)
	}

	// encoding/json sorts map keys, which gives us the canonical form.
	canonical, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("canonicalize JSON: %w", err)
	}

	return &models.ExtractedContent{
		Kind:       models.KindStructured,
		Text:       string(canonical),
		Structured: json.RawMessage(canonical),
	}, nil
}
