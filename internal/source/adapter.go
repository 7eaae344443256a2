// Package source contains the upstream connectors. Each adapter returns the
// source's native rows untouched; mapping to tenders happens in canonical.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// Adapter fetches the raw records of one upstream.
type Adapter interface {
	Kind() domain.SourceKind
	Fetch(ctx context.Context) ([]domain.RawRecord, error)
}

// Options configures the HTTP side of an adapter.
type Options struct {
	URL       string
	UserAgent string

	// Timeout applies to each HTTP request. Defaults to 60s.
	Timeout time.Duration

	// RequestsPerSecond paces requests to the upstream. 0 disables pacing.
	RequestsPerSecond float64

	// MaxPages bounds paginated sources. 0 means until exhausted.
	MaxPages int

	// Client overrides the HTTP client (tests).
	Client *http.Client
}

// fetcher is the shared GET path for HTTP adapters.
type fetcher struct {
	kind      domain.SourceKind
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func newFetcher(kind domain.SourceKind, opts Options) *fetcher {
	client := opts.Client
	if client == nil {
		to := opts.Timeout
		if to <= 0 {
			to = 60 * time.Second
		}
		client = &http.Client{Timeout: to}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "tenderingest/1.0"
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &fetcher{kind: kind, client: client, userAgent: ua, limiter: lim}
}

// get performs a paced GET and returns the body of a 2xx response.
func (f *fetcher) get(ctx context.Context, u, accept string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("http status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}

func fetchError(kind domain.SourceKind, op string, err error) error {
	var fe *domain.SourceFetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.SourceFetchError{Source: kind, Op: op, Err: err}
}
