package extract

import (
	"fmt"
	"unicode/utf8"

	"github.com/genbatech/chie/internal/models"
)

// extractPlain returns content as text. Invalid UTF-8 is an error rather than
// a silent replacement: diffs and embeddings over mangled text would be worse
// than a rejected upload.
func extractPlain(content []byte) (*models.ExtractedContent, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("validate text: %w", models.ErrEncoding)
	}
	return &models.ExtractedContent{
		Kind: models.KindText,
		Text: string(content),
	}, nil
}
