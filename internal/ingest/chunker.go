// Package ingest turns uploaded files into stored, chunked, embedded, and
// indexed knowledge documents.
package ingest

import "strings"

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultOverlapRatio sets the overlap as a fraction of the chunk size.
	DefaultOverlapRatio = 0.2
)

// Chunker splits text into bounded, overlapping chunks. Splits prefer
// paragraph boundaries, then sentence boundaries, then a hard cut. Each chunk
// after the first starts with exactly the overlap tail of its predecessor, so
// the original text is recoverable as chunks[0] + chunks[i][overlap:].
// Chunker is pure: the same text always yields the same chunks.
type Chunker struct {
	targetSize int
	overlap    int
}

// NewChunker returns a Chunker with the given limits. Non-positive targetSize
// falls back to the default; overlap is clamped below targetSize.
func NewChunker(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = int(float64(targetSize) * DefaultOverlapRatio)
	}
	if overlap >= targetSize {
		overlap = targetSize - 1
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits text into chunks of at most targetSize runes. Empty input
// yields nil.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.targetSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.targetSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = c.splitPoint(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))
		start = end - c.overlap
	}
	return chunks
}

// splitPoint picks the cut position in (start, limit], preferring the last
// paragraph break, then the last sentence end. The chosen point must leave
// more than overlap runes of progress or the walk would stall.
func (c *Chunker) splitPoint(runes []rune, start, limit int) int {
	minEnd := start + c.overlap + 1
	window := string(runes[start:limit])

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		end := start + len([]rune(window[:i])) + 2
		if end >= minEnd {
			return end
		}
	}
	if end := lastSentenceEnd(runes, start, limit); end >= minEnd {
		return end
	}
	return limit
}

// lastSentenceEnd returns the position just after the last sentence
// terminator in [start, limit), or start if none is found.
func lastSentenceEnd(runes []rune, start, limit int) int {
	for i := limit - 1; i > start; i-- {
		switch runes[i] {
		case '.', '!', '?', '。', '！', '？', '\n':
			return i + 1
		}
	}
	return start
}
