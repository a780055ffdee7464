package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/genbatech/chie/internal/models"
)

// extractPDF extracts page text and document info. A PDF with no extractable
// text (scanned pages) is not an error; it is flagged LowTextConfidence so
// callers can decide whether the document is worth indexing.
func extractPDF(content []byte) (*models.ExtractedContent, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w: %w", models.ErrMalformedInput, err)
	}

	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}

	meta := models.ExtractionMetadata{PageCount: numPages}
	if info := r.Trailer().Key("Info"); !info.IsNull() {
		meta.Title = info.Key("Title").Text()
		meta.Author = info.Key("Author").Text()
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		meta.LowTextConfidence = true
	}

	return &models.ExtractedContent{
		Kind:     models.KindText,
		Text:     text,
		Metadata: meta,
	}, nil
}
