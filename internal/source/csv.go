package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// CSVAdapter downloads a headered CSV file and returns one record per row,
// keyed by header name.
type CSVAdapter struct {
	kind domain.SourceKind
	url  string
	http *fetcher
}

// NewCSVAdapter creates a CSV adapter for kind.
func NewCSVAdapter(kind domain.SourceKind, opts Options) (*CSVAdapter, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("csv adapter: URL is required")
	}
	return &CSVAdapter{kind: kind, url: opts.URL, http: newFetcher(kind, opts)}, nil
}

func (a *CSVAdapter) Kind() domain.SourceKind { return a.kind }

func (a *CSVAdapter) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	body, err := a.http.get(ctx, a.url, "text/csv")
	if err != nil {
		return nil, fetchError(a.kind, "http", err)
	}
	records, err := ParseCSV(a.kind, bytes.NewReader(body))
	if err != nil {
		return nil, fetchError(a.kind, "parse", err)
	}
	return records, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a headered CSV stream. Rows shorter than the header leave
// the missing columns absent; blank rows are skipped.
func ParseCSV(kind domain.SourceKind, r io.Reader) ([]domain.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []domain.RawRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		fields := make(map[string]any, len(header))
		blank := true
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				blank = false
			}
			fields[header[i]] = cell
		}
		if blank {
			continue
		}
		records = append(records, domain.RawRecord{Kind: kind, Fields: fields})
	}
	return records, nil
}
