package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// TorontoAdapter loads the City of Toronto OData feed in a headless browser
// (the endpoint rejects plain HTTP clients) and reads the JSON the browser
// renders as page text.
type TorontoAdapter struct {
	url     string
	browser BrowserOptions
}

// NewTorontoAdapter creates the Toronto adapter.
func NewTorontoAdapter(opts Options, bo BrowserOptions) (*TorontoAdapter, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("toronto adapter: URL is required")
	}
	if bo.UserAgent == "" {
		bo.UserAgent = opts.UserAgent
	}
	return &TorontoAdapter{url: opts.URL, browser: bo}, nil
}

func (a *TorontoAdapter) Kind() domain.SourceKind { return domain.SourceToronto }

func (a *TorontoAdapter) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var text string
	err := withBrowser(ctx, a.browser, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.Navigate(a.url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(`document.body.innerText`, &text),
		)
	})
	if err != nil {
		return nil, fetchError(domain.SourceToronto, "browser", err)
	}

	records, err := parseODataValue(domain.SourceToronto, []byte(text))
	if err != nil {
		return nil, fetchError(domain.SourceToronto, "parse", err)
	}
	return records, nil
}

// parseODataValue extracts the "value" array of an OData JSON response.
func parseODataValue(kind domain.SourceKind, body []byte) ([]domain.RawRecord, error) {
	var payload struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("odata payload: %w", err)
	}
	if payload.Value == nil {
		return nil, errors.New("odata payload has no value array")
	}
	records := make([]domain.RawRecord, 0, len(payload.Value))
	for _, item := range payload.Value {
		records = append(records, domain.RawRecord{Kind: kind, Fields: item})
	}
	return records, nil
}
