// Package extract normalizes uploaded files of various formats into
// structured content suitable for storage, diffing, and chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genbatech/chie/internal/models"
)

// Extractor converts raw file bytes into normalized extracted content.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile reads the file at path and extracts its content.
func (e *Extractor) ExtractFile(path string) (*models.ExtractedContent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.Extract(content, ext)
}

// Extract dispatches on the lowercased extension (with leading dot) and
// returns normalized content. Extensions outside the supported set return
// *models.UnsupportedFormatError; the set is closed on purpose so that a
// typo'd upload fails loudly instead of being indexed as garbage.
func (e *Extractor) Extract(content []byte, ext string) (*models.ExtractedContent, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return extractJSON(content)
	case ".txt", ".md", ".rst":
		return extractPlain(content)
	case ".xlsx":
		return extractExcel(content)
	case ".xls":
		return extractLegacyExcel(content)
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractWord(content)
	case ".jpg", ".jpeg", ".png", ".gif":
		return extractImage(content, strings.ToLower(ext))
	default:
		return nil, &models.UnsupportedFormatError{Ext: ext}
	}
}

// Supported reports whether ext (with leading dot, any case) is extractable.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".json", ".txt", ".md", ".rst", ".xlsx", ".xls", ".pdf", ".docx",
		".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

// IsImageExt reports whether ext names an image format. Image uploads skip
// the version differencer since there is no text to compare.
func IsImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}
