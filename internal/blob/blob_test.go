package blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/genbatech/chie/internal/models"
)

func TestPutGet(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	data := []byte{0xFF, 0xD8, 0x01, 0x02}
	locator, err := s.Put(data, ".jpg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if filepath.Ext(locator) != ".jpg" {
		t.Errorf("locator %q missing extension", locator)
	}

	got, err := s.Get(locator)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %v, want %v", got, data)
	}
}

func TestGet_missing(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	_, err = s.Get("no-such-blob.jpg")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_rejectsTraversal(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	for _, locator := range []string{"../secret", "a/b", "..", ""} {
		if _, err := s.Get(locator); err == nil {
			t.Errorf("Get(%q) succeeded, want error", locator)
		}
	}
}

func TestDelete(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	locator, err := s.Put([]byte("x"), ".bin")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(locator); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(locator); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
	// Deleting again is a no-op.
	if err := s.Delete(locator); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), make([]byte, 50), 0600); err != nil {
		t.Fatal(err)
	}

	n, err := DiskUsageBytes(dir, "/nonexistent/path", "")
	if err != nil {
		t.Fatalf("DiskUsageBytes: %v", err)
	}
	if n != 150 {
		t.Errorf("got %d bytes, want 150", n)
	}
}
