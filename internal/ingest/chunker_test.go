package ingest

import (
	"strings"
	"testing"
)

func reconstruct(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, ch := range chunks[1:] {
		b.WriteString(string([]rune(ch)[overlap:]))
	}
	return b.String()
}

func TestChunk_empty(t *testing.T) {
	c := NewChunker(100, 20)
	if got := c.Chunk(""); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestChunk_shortText(t *testing.T) {
	c := NewChunker(100, 20)
	got := c.Chunk("short text")
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("got %v", got)
	}
}

func TestChunk_sizeBound(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("word and more text. ", 40)
	for i, ch := range c.Chunk(text) {
		if n := len([]rune(ch)); n > 50 {
			t.Errorf("chunk %d has %d runes, max 50", i, n)
		}
	}
}

func TestChunk_reconstruction(t *testing.T) {
	c := NewChunker(60, 15)
	texts := []string{
		strings.Repeat("The pump failed again. Pressure dropped fast. ", 20),
		"para one\n\npara two with more text\n\n" + strings.Repeat("filler sentence here. ", 30),
		strings.Repeat("x", 500), // no boundaries at all
	}
	for _, text := range texts {
		chunks := c.Chunk(text)
		if got := reconstruct(chunks, c.Overlap()); got != text {
			t.Errorf("reconstruction failed for %q...: got %d runes, want %d",
				text[:20], len([]rune(got)), len([]rune(text)))
		}
	}
}

func TestChunk_exactOverlap(t *testing.T) {
	c := NewChunker(40, 10)
	text := strings.Repeat("abcde fghij. ", 30)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-10:])
		head := string(cur[:10])
		if tail != head {
			t.Fatalf("chunk %d head %q != chunk %d tail %q", i, head, i-1, tail)
		}
	}
}

func TestChunk_prefersParagraphBoundary(t *testing.T) {
	c := NewChunker(50, 5)
	text := "first paragraph here.\n\nsecond paragraph is long enough to push past the limit for sure."
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("first chunk %q does not end at paragraph boundary", chunks[0])
	}
}

func TestChunk_japaneseSentences(t *testing.T) {
	c := NewChunker(20, 4)
	text := strings.Repeat("ポンプが故障した。圧力が低下した。", 5)
	chunks := c.Chunk(text)
	if got := reconstruct(chunks, c.Overlap()); got != text {
		t.Error("reconstruction failed for Japanese text")
	}
	for i, ch := range chunks {
		if n := len([]rune(ch)); n > 20 {
			t.Errorf("chunk %d has %d runes, max 20", i, n)
		}
	}
}

func TestChunk_deterministic(t *testing.T) {
	c := NewChunker(64, 12)
	text := strings.Repeat("some repeating sentence. ", 50)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestNewChunker_clampsOverlap(t *testing.T) {
	c := NewChunker(10, 50)
	if c.Overlap() >= 10 {
		t.Errorf("overlap = %d, must be below target size", c.Overlap())
	}
	// Chunking must still terminate.
	chunks := c.Chunk(strings.Repeat("a", 100))
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
}
