package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

const (
	stealthUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	hideWebdriver    = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

	portalNavigationTimeout = 45 * time.Second
	portalPollAttempts      = 25
	portalPollInterval      = 500 * time.Millisecond
)

// BidsAndTendersAdapter opens a municipal bids&tenders portal in a stealth
// browser and captures the JSON of the portal's own search request.
type BidsAndTendersAdapter struct {
	kind    domain.SourceKind
	url     string
	browser BrowserOptions
}

// NewBidsAndTendersAdapter creates an adapter for one portal. An empty URL
// uses the portal's built-in listing page.
func NewBidsAndTendersAdapter(kind domain.SourceKind, opts Options, bo BrowserOptions) (*BidsAndTendersAdapter, error) {
	portal, ok := domain.Portals[kind]
	if !ok {
		return nil, fmt.Errorf("bidsandtenders adapter: %s is not a known portal", kind)
	}
	u := strings.TrimSpace(opts.URL)
	if u == "" {
		u = portal.BaseURL
	}
	bo.Stealth = true
	bo.UserAgent = stealthUserAgent
	return &BidsAndTendersAdapter{kind: kind, url: u, browser: bo}, nil
}

func (a *BidsAndTendersAdapter) Kind() domain.SourceKind { return a.kind }

func (a *BidsAndTendersAdapter) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var body []byte
	err := withBrowser(ctx, a.browser, func(ctx context.Context) error {
		capture := newSearchCapture()
		chromedp.ListenTarget(ctx, capture.observe)

		if err := chromedp.Run(ctx,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
				return err
			}),
		); err != nil {
			return err
		}

		navCtx, cancel := context.WithTimeout(ctx, portalNavigationTimeout)
		err := chromedp.Run(navCtx, chromedp.Navigate(a.url))
		cancel()
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		id, ok := capture.wait(ctx, portalPollAttempts, portalPollInterval)
		if !ok {
			return errors.New("search response not intercepted")
		}
		return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			b, err := network.GetResponseBody(id).Do(ctx)
			body = b
			return err
		}))
	})
	if err != nil {
		return nil, fetchError(a.kind, "browser", err)
	}

	records, err := parseSearchPayload(a.kind, body)
	if err != nil {
		return nil, fetchError(a.kind, "parse", err)
	}
	return records, nil
}

// searchCapture remembers the first matching search response whose body has
// finished loading. Listener callbacks must not block, so they only record ids.
type searchCapture struct {
	mu       sync.Mutex
	pending  map[network.RequestID]bool
	finished network.RequestID
}

func newSearchCapture() *searchCapture {
	return &searchCapture{pending: make(map[network.RequestID]bool)}
}

func (c *searchCapture) observe(ev interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response != nil && isSearchResponse(e.Response.URL, e.Response.MimeType) {
			c.pending[e.RequestID] = true
		}
	case *network.EventLoadingFinished:
		if c.pending[e.RequestID] && c.finished == "" {
			c.finished = e.RequestID
		}
	}
}

func (c *searchCapture) ready() (network.RequestID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished, c.finished != ""
}

func (c *searchCapture) wait(ctx context.Context, attempts int, interval time.Duration) (network.RequestID, bool) {
	for i := 0; i < attempts; i++ {
		if id, ok := c.ready(); ok {
			return id, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(interval):
		}
	}
	return c.ready()
}

func isSearchResponse(url, mimeType string) bool {
	return strings.Contains(url, domain.SearchPathFragment) &&
		strings.Contains(strings.ToLower(mimeType), "json")
}

// parseSearchPayload reads the "data" array of a portal search response.
func parseSearchPayload(kind domain.SourceKind, body []byte) ([]domain.RawRecord, error) {
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("search payload: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("search payload has no data array")
	}
	records := make([]domain.RawRecord, 0, len(payload.Data))
	for _, item := range payload.Data {
		records = append(records, domain.RawRecord{Kind: kind, Fields: item})
	}
	return records, nil
}
