package embedding

import (
	"context"
	"testing"
)

func TestCache_getSet(t *testing.T) {
	c := NewCache(2)
	if _, ok := c.Get("a"); ok {
		t.Error("unexpected hit on empty cache")
	}
	c.Set("a", []float32{1})
	v, ok := c.Get("a")
	if !ok || len(v) != 1 || v[0] != 1 {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestCache_eviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Set("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestCache_overwrite(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	v, _ := c.Get("a")
	if v[0] != 9 {
		t.Errorf("got %v, want overwritten value", v)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, err := e.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d", i)
		}
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("norm^2 = %f, want ~1", sum)
	}
}
