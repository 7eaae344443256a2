package searchsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes bounds how much of a sync response is read.
const maxBodyBytes = 1 << 20

// HTTPSender posts sync requests to the search service.
type HTTPSender struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPSender creates a sender for the service at baseURL. A zero timeout
// means 30s.
func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

// WithHTTPClient overrides the HTTP client (tests).
func (s *HTTPSender) WithHTTPClient(c *http.Client) *HTTPSender {
	s.client = c
	return s
}

// Send posts to /elasticsearch/sync, or /elasticsearch/sync/{id} for a single
// tender. The service may answer 200 with status "error" in the body; that is
// reported as a failed result.
func (s *HTTPSender) Send(ctx context.Context, tenderID string) Result {
	start := time.Now()

	endpoint := s.baseURL + "/elasticsearch/sync"
	if tenderID != "" {
		endpoint += "/" + url.PathEscape(tenderID)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, endpoint, nil)
	if err != nil {
		return Result{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return Result{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	result := Result{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if len(body) > 0 {
		// Error responses are FastAPI {"detail": ...}; ignore what does not decode.
		_ = json.Unmarshal(body, &result.Summary)
	}
	if result.StatusCode >= 200 && result.StatusCode < 300 && result.Summary.Status == "error" {
		result.Error = fmt.Errorf("search service: %s", result.Summary.Error)
	}
	result.Duration = time.Since(start)
	return result
}
