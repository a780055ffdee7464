package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion and query paths. Callers classify with
// errors.Is; only ErrEmbeddingUnavailable is transient and worth retrying.
var (
	// ErrMalformedInput means the file claimed a format but could not be parsed.
	ErrMalformedInput = errors.New("malformed input")
	// ErrEncoding means text content was not valid UTF-8. The extractor does
	// not silently substitute replacement characters.
	ErrEncoding = errors.New("invalid text encoding")
	// ErrEmbeddingUnavailable means the embedding provider failed after
	// bounded retries (timeout, quota). Transient; the caller may retry.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrDimensionMismatch means a vector did not match the index dimension.
	// This is a configuration fault: ingestion halts until an operator resolves it.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrNotFound is a lookup miss.
	ErrNotFound = errors.New("not found")
	// ErrIngestHalted is returned while ingestion is suspended after a
	// dimension mismatch.
	ErrIngestHalted = errors.New("ingestion halted: dimension mismatch pending operator action")
)

// UnsupportedFormatError reports an extension outside the supported set.
// Never retried; the caller must fix the input.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %q", e.Ext)
}

// IsRetryable reports whether err is a transient failure the caller may retry,
// as opposed to a permanent input or configuration error.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}
