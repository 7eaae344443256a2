package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/xuri/excelize/v2"

	"github.com/FuJacob/mapletenders-sub000/internal/canonical"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

const (
	ontarioMenuSelector   = `button[aria-label='Other Action Menu']`
	ontarioExportSelector = `a[aria-label='Export the contents of the list in MS Excel format.']`

	// ontarioFallbackHeaderRow is the 0-based row the export has used for its
	// header when no marker cell is found.
	ontarioFallbackHeaderRow = 6
)

// OntarioAdapter drives the Jaggaer portal's "export to Excel" action and
// parses the downloaded workbook.
type OntarioAdapter struct {
	url         string
	downloadDir string
	wait        time.Duration
	browser     BrowserOptions
}

// NewOntarioAdapter creates the Ontario adapter. downloadDir is the parent of
// the per-run temporary directory; wait bounds the download.
func NewOntarioAdapter(opts Options, bo BrowserOptions, downloadDir string, wait time.Duration) (*OntarioAdapter, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("ontario adapter: URL is required")
	}
	if wait <= 0 {
		wait = 30 * time.Second
	}
	if bo.UserAgent == "" {
		bo.UserAgent = opts.UserAgent
	}
	return &OntarioAdapter{url: opts.URL, downloadDir: downloadDir, wait: wait, browser: bo}, nil
}

func (a *OntarioAdapter) Kind() domain.SourceKind { return domain.SourceOntario }

func (a *OntarioAdapter) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	dir, err := os.MkdirTemp(a.downloadDir, "ontario-export-*")
	if err != nil {
		return nil, fetchError(domain.SourceOntario, "download", err)
	}
	defer os.RemoveAll(dir)

	var workbook string
	err = withBrowser(ctx, a.browser, func(ctx context.Context) error {
		if err := chromedp.Run(ctx,
			browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
				WithDownloadPath(dir).
				WithEventsEnabled(true),
			chromedp.Navigate(a.url),
			chromedp.WaitVisible(ontarioMenuSelector, chromedp.ByQuery),
			chromedp.Click(ontarioMenuSelector, chromedp.ByQuery),
			chromedp.WaitVisible(ontarioExportSelector, chromedp.ByQuery),
			chromedp.Click(ontarioExportSelector, chromedp.ByQuery),
		); err != nil {
			return err
		}
		path, err := waitForFile(ctx, dir, ".xlsx", a.wait)
		workbook = path
		return err
	})
	if err != nil {
		return nil, fetchError(domain.SourceOntario, "download", err)
	}

	records, err := ReadWorkbook(domain.SourceOntario, workbook)
	if err != nil {
		return nil, fetchError(domain.SourceOntario, "parse", err)
	}
	return records, nil
}

// waitForFile polls dir until a completed file with the given extension
// appears or wait elapses.
func waitForFile(ctx context.Context, dir, ext string, wait time.Duration) (string, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
				return filepath.Join(dir, e.Name()), nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("no %s file after %s", ext, wait)
		case <-ticker.C:
		}
	}
}

// ReadWorkbook parses the first sheet of an Ontario export. Cells are read
// unformatted, so date cells arrive as serial-day numbers.
func ReadWorkbook(kind domain.SourceKind, path string) ([]domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rowsToRecords(kind, rows)
}

// findHeaderRow returns the first row whose column A names the project code
// column, falling back to the export's usual header position.
func findHeaderRow(rows [][]string) int {
	marker := strings.ToLower(canonical.OntarioProjectCode)
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := strings.ToLower(strings.TrimSpace(row[0]))
		if strings.Contains(cell, marker) || strings.Contains(cell, "tender_") {
			return i
		}
	}
	if len(rows) > ontarioFallbackHeaderRow {
		return ontarioFallbackHeaderRow
	}
	return -1
}

func rowsToRecords(kind domain.SourceKind, rows [][]string) ([]domain.RawRecord, error) {
	hdr := findHeaderRow(rows)
	if hdr < 0 {
		return nil, errors.New("header row not found")
	}
	header := rows[hdr]

	var records []domain.RawRecord
	for _, row := range rows[hdr+1:] {
		fields := make(map[string]any, len(header))
		blank := true
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			name := strings.TrimSpace(header[i])
			if name == "" {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			fields[name] = cell
		}
		if blank {
			continue
		}
		records = append(records, domain.RawRecord{Kind: kind, Fields: fields})
	}
	return records, nil
}
