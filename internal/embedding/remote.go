package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/genbatech/chie/internal/models"
)

const (
	// maxAttempts bounds retries against the provider. Failures past this
	// surface as ErrEmbeddingUnavailable for the caller to handle.
	maxAttempts = 3
	// defaultRequestsPerSecond is the provider rate limit when none is configured.
	defaultRequestsPerSecond = 5
)

// RemoteConfig configures the remote embedding client.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is the expected vector size. The first response fixes it
	// when zero; a later change is a configuration fault, not a retry case.
	Dimensions        int
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheSize         int
}

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint. It is safe
// for concurrent use; the ingester, search engine, and correlator share one
// instance.
type RemoteEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	cache   *Cache

	// mu guards dimensions, which is discovered from the first response when
	// configured as zero.
	mu         sync.Mutex
	dimensions int
}

// NewRemoteEmbedder returns a rate-limited, caching client for cfg.
func NewRemoteEmbedder(cfg RemoteConfig) (*RemoteEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &RemoteEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      NewCache(cacheSize),
	}, nil
}

// Embed returns the embedding for a single text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, serving repeats from the cache.
// Result order matches input order.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		if v, ok := e.cache.Get(t); ok {
			results[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	vecs, err := e.request(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		if err := e.checkDimensions(v); err != nil {
			return nil, err
		}
		e.cache.Set(missing[j], v)
		results[missingIdx[j]] = v
	}
	return results, nil
}

// checkDimensions fixes the vector size on first contact and rejects any
// later change as a configuration fault.
func (e *RemoteEmbedder) checkDimensions(v []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimensions == 0 {
		e.dimensions = len(v)
	}
	if len(v) != e.dimensions {
		return fmt.Errorf("provider returned %d dimensions, expected %d: %w",
			len(v), e.dimensions, models.ErrDimensionMismatch)
	}
	return nil
}

// request posts the embeddings call with bounded retries. 429 and 5xx are
// retried honoring Retry-After; other non-2xx statuses fail immediately.
func (e *RemoteEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": input,
		"model": e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := e.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt, lastErr)); err != nil {
				return nil, err
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &httpStatusError{status: resp.Status, retryAfter: resp.Header.Get("Retry-After")}
			_ = resp.Body.Close()
			continue
		}
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s: %w", resp.Status, models.ErrEmbeddingUnavailable)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		vecs, err := parseEmbeddings(payload, len(input))
		if err != nil {
			return nil, err
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("embeddings request failed after %d attempts: %v: %w",
		maxAttempts, lastErr, models.ErrEmbeddingUnavailable)
}

func parseEmbeddings(payload []byte, want int) ([][]float32, error) {
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Data) != want {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs: %w",
			len(out.Data), want, models.ErrEmbeddingUnavailable)
	}
	vecs := make([][]float32, want)
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("provider returned out-of-range index %d: %w", d.Index, models.ErrEmbeddingUnavailable)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the configured or discovered embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources worth closing.
func (e *RemoteEmbedder) Close() error {
	return nil
}

type httpStatusError struct {
	status     string
	retryAfter string
}

func (e *httpStatusError) Error() string {
	return e.status
}

// retryDelay is exponential from 500ms, overridden by Retry-After when the
// previous failure carried one.
func retryDelay(attempt int, lastErr error) time.Duration {
	if se, ok := lastErr.(*httpStatusError); ok && se.retryAfter != "" {
		if secs, err := strconv.Atoi(se.retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
