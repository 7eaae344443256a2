// Package canonical maps source-native records into domain.Tender.
//
// Every mapper is a pure function of the raw record and the scrape time.
// Date parsing is delegated to package dates. A record that lacks an identity
// yields a *domain.MappingError so the caller can skip it and keep the rest of
// the batch.
package canonical

import (
	"fmt"
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

type mapper func(rec domain.RawRecord, now time.Time) (domain.Tender, error)

var mappers = map[domain.SourceKind]mapper{
	domain.SourceCanadian: mapCanadian,
	domain.SourceToronto:  mapToronto,
	domain.SourceOntario:  mapOntario,
	domain.SourceQuebec:   mapQuebec,
}

// Canonicalize maps one raw record according to its kind.
func Canonicalize(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	var (
		t   domain.Tender
		err error
	)
	if rec.Kind.IsBidsAndTenders() {
		t, err = mapBidsAndTenders(rec, now)
	} else {
		m, ok := mappers[rec.Kind]
		if !ok {
			return domain.Tender{}, &domain.MappingError{Source: rec.Kind, Field: "kind", Reason: "has no mapper"}
		}
		t, err = m(rec, now)
	}
	if err != nil {
		return domain.Tender{}, err
	}

	if t.ID == "" {
		return domain.Tender{}, &domain.MappingError{Source: rec.Kind, Field: "id", Reason: "is empty"}
	}
	if t.SourceReference == "" {
		t.SourceReference = t.ID
	}
	if t.Currency == "" {
		t.Currency = domain.DefaultCurrency
	}
	if t.Category == "" {
		t.Category = InferCategory(t.Title, t.Description)
	}
	t.Source = rec.Kind
	t.LastScrapedAt = now.UTC()
	return t, nil
}

// PrepareBatch applies the per-source pre-aggregation that must run before
// row-by-row mapping.
func PrepareBatch(kind domain.SourceKind, records []domain.RawRecord) []domain.RawRecord {
	switch kind {
	case domain.SourceQuebec:
		return MergeByKey(records, "numero", "regionIds")
	case domain.SourceCanadian:
		return MergeByKey(records, canadianReference, canadianRegions)
	default:
		return records
	}
}

// Batch canonicalizes a whole fetch, preserving order. Records that fail to
// map are returned as errors alongside the successes.
func Batch(kind domain.SourceKind, records []domain.RawRecord, now time.Time) ([]domain.Tender, []error) {
	prepared := PrepareBatch(kind, records)
	tenders := make([]domain.Tender, 0, len(prepared))
	var errs []error
	for i, rec := range prepared {
		if rec.Kind == "" {
			rec.Kind = kind
		}
		t, err := Canonicalize(rec, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		tenders = append(tenders, t)
	}
	if kind.IsBidsAndTenders() {
		uniqueBidReferences(tenders)
	}
	return tenders, errs
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
