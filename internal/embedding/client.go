// Package embedding talks to the ML service that turns tenders into vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

const (
	defaultBaseURL   = "http://127.0.0.1:8000"
	defaultBatchSize = 100
	generatePath     = "/embeddings/generate/data"
)

// defaultBackoff is the delay before each attempt; its length is the attempt count.
var defaultBackoff = []time.Duration{0, 1 * time.Second, 3 * time.Second}

// Result is index-aligned with the tenders passed to Embed. A nil vector
// means the service returned none for that tender.
type Result struct {
	Vectors [][]float32
	Inputs  []string
}

// Client posts tender batches to the embedding service.
type Client struct {
	baseURL   string
	client    *http.Client
	batchSize int
	backoff   []time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the service root, e.g. http://ml:8000.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client = &http.Client{Timeout: d} }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBatchSize bounds how many tenders go in one request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithBackoff replaces the retry schedule.
func WithBackoff(delays []time.Duration) Option {
	return func(c *Client) {
		if len(delays) > 0 {
			c.backoff = delays
		}
	}
}

// NewClient creates an embedding client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 60 * time.Second},
		batchSize: defaultBatchSize,
		backoff:   defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	EmbeddingInputs []string    `json:"embedding_inputs"`
}

// Embed embeds tenders in batches. Any failure is wrapped in
// domain.ErrEmbeddingUnavailable; callers are expected to degrade.
func (c *Client) Embed(ctx context.Context, tenders []domain.Tender) (Result, error) {
	res := Result{
		Vectors: make([][]float32, len(tenders)),
		Inputs:  make([]string, len(tenders)),
	}
	for start := 0; start < len(tenders); start += c.batchSize {
		end := start + c.batchSize
		if end > len(tenders) {
			end = len(tenders)
		}
		batch := tenders[start:end]

		resp, err := c.generateWithRetry(ctx, batch)
		if err != nil {
			return Result{}, fmt.Errorf("%w: batch at %d: %w", domain.ErrEmbeddingUnavailable, start, err)
		}
		copy(res.Vectors[start:end], resp.Embeddings)
		for i := range batch {
			if i < len(resp.EmbeddingInputs) {
				res.Inputs[start+i] = resp.EmbeddingInputs[i]
			}
		}
	}
	return res, nil
}

func (c *Client) generateWithRetry(ctx context.Context, batch []domain.Tender) (generateResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return generateResponse{}, fmt.Errorf("marshal batch: %w", err)
	}

	var lastErr error
	for attempt, delay := range c.backoff {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return generateResponse{}, ctx.Err()
			}
		}

		resp, retryable, err := c.post(ctx, body, len(batch))
		if err == nil {
			return resp, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return generateResponse{}, lastErr
}

func (c *Client) post(ctx context.Context, body []byte, want int) (generateResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return generateResponse{}, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return generateResponse{}, true, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return generateResponse{}, retryable, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return generateResponse{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != want {
		return generateResponse{}, false, fmt.Errorf("expected %d embeddings, got %d", want, len(out.Embeddings))
	}
	return out, true, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
