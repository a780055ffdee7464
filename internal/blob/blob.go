// Package blob stores opaque binary payloads (retained originals and
// optimized image copies) on disk, addressed by locator.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/genbatech/chie/internal/models"
)

// Store persists binary blobs and returns opaque locators for retrieval.
type Store interface {
	// Put writes data and returns its locator. ext (with leading dot) is
	// preserved in the locator for operator convenience.
	Put(data []byte, ext string) (string, error)
	Get(locator string) ([]byte, error)
	Delete(locator string) error
}

// DiskStore implements Store on the local filesystem. Writes go to a
// temporary file first and are renamed into place, so a crash never leaves a
// partially written blob behind a valid locator.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the blob directory if needed and returns a DiskStore.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Put writes data under a fresh locator.
func (s *DiskStore) Put(data []byte, ext string) (string, error) {
	locator := uuid.New().String() + strings.ToLower(ext)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, locator)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("finalize blob: %w", err)
	}
	return locator, nil
}

// Get reads a blob by locator.
func (s *DiskStore) Get(locator string) ([]byte, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", locator, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *DiskStore) Delete(locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// resolve rejects locators that would escape the blob directory.
func (s *DiskStore) resolve(locator string) (string, error) {
	if locator == "" || strings.ContainsAny(locator, "/\\") || strings.Contains(locator, "..") {
		return "", fmt.Errorf("invalid blob locator %q", locator)
	}
	return filepath.Join(s.dir, locator), nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
