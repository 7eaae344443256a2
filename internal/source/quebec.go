package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// quebecPageLimit bounds an uncapped fetch whose upstream never signals its
// last page.
const quebecPageLimit = 500

// QuebecAdapter pages through the SEAO search API.
type QuebecAdapter struct {
	base      *url.URL
	maxPages  int
	pageLimit int
	http      *fetcher
}

// NewQuebecAdapter creates the SEAO adapter.
func NewQuebecAdapter(opts Options) (*QuebecAdapter, error) {
	base := strings.TrimSpace(opts.URL)
	if base == "" {
		return nil, errors.New("quebec adapter: URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("quebec adapter: invalid URL: %w", err)
	}
	return &QuebecAdapter{
		base:      u,
		maxPages:  opts.MaxPages,
		pageLimit: quebecPageLimit,
		http:      newFetcher(domain.SourceQuebec, opts),
	}, nil
}

func (a *QuebecAdapter) Kind() domain.SourceKind { return domain.SourceQuebec }

// Fetch requests pages 1..n until a page comes back empty, a page repeats
// only notices already seen, the reported total is reached, or MaxPages is
// hit. An uncapped fetch that runs past the page limit fails rather than
// return a truncated snapshot.
func (a *QuebecAdapter) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	seen := make(map[string]bool)
	for page := 1; ; page++ {
		if a.maxPages > 0 && page > a.maxPages {
			break
		}
		if a.maxPages <= 0 && page > a.pageLimit {
			return nil, fetchError(domain.SourceQuebec, "http", fmt.Errorf("no last page after %d pages", a.pageLimit))
		}

		u := *a.base
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()

		body, err := a.http.get(ctx, u.String(), "application/json")
		if err != nil {
			return nil, fetchError(domain.SourceQuebec, "http", fmt.Errorf("page %d: %w", page, err))
		}
		items, total, err := parseQuebecPage(body)
		if err != nil {
			return nil, fetchError(domain.SourceQuebec, "parse", fmt.Errorf("page %d: %w", page, err))
		}
		if len(items) == 0 {
			break
		}
		if page > 1 && !hasUnseenNotice(items, seen) {
			// The upstream ignores the page parameter.
			break
		}
		for _, item := range items {
			if key := quebecNoticeKey(item); key != "" {
				seen[key] = true
			}
			records = append(records, domain.RawRecord{Kind: domain.SourceQuebec, Fields: item})
		}
		if total >= 0 && len(records) >= total {
			break
		}
	}
	return records, nil
}

// quebecNoticeKey identifies a notice across pages. Rows of one notice that
// differ only by region share a key.
func quebecNoticeKey(item map[string]any) string {
	if numero := domain.FormatScalar(item["numero"]); numero != "" {
		return numero
	}
	return domain.FormatScalar(item["id"])
}

// hasUnseenNotice reports whether items carries a notice missing from seen.
// Items without a key count as unseen.
func hasUnseenNotice(items []map[string]any, seen map[string]bool) bool {
	for _, item := range items {
		key := quebecNoticeKey(item)
		if key == "" || !seen[key] {
			return true
		}
	}
	return false
}

// parseQuebecPage accepts both {"avis":[...],"total":n} and a bare array.
// total is -1 when the payload does not report one.
func parseQuebecPage(body []byte) ([]map[string]any, int, error) {
	var wrapped struct {
		Avis  []map[string]any `json:"avis"`
		Total *int             `json:"total"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		total := -1
		if wrapped.Total != nil {
			total = *wrapped.Total
		}
		return wrapped.Avis, total, nil
	}
	var arr []map[string]any
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, 0, fmt.Errorf("search payload: %w", err)
	}
	return arr, -1, nil
}
