// Package ingest runs one source through fetch, canonicalization, embedding
// and persistence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/canonical"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/embedding"
	"github.com/FuJacob/mapletenders-sub000/internal/source"
)

// maxWarnings caps per-record warnings copied into an outcome.
const maxWarnings = 10

// Store is the persistence an import needs.
type Store interface {
	UpsertTenders(ctx context.Context, tenders []domain.Tender) (int, error)
	RemoveStale(ctx context.Context, source domain.SourceKind, refs []string) (int64, error)
}

// Embedder turns tenders into vectors. Errors are expected to wrap
// domain.ErrEmbeddingUnavailable.
type Embedder interface {
	Embed(ctx context.Context, tenders []domain.Tender) (embedding.Result, error)
}

// AnalyticsSink records per-source import counts. Implementations handle
// their own errors; analytics never affects an import.
type AnalyticsSink interface {
	RecordImport(ctx context.Context, source domain.SourceKind, imported int, at time.Time)
}

// MetricsSink defines the interface for recording import metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	SourceImportCompleted(source, outcome string, duration time.Duration, imported, rejected int)
	StaleRemoved(source string, n int64)
	EmbeddingDegraded(source string)
}

// Importer imports a single source.
type Importer struct {
	adapter      source.Adapter
	store        Store
	embedder     Embedder      // optional, nil = store without vectors
	analytics    AnalyticsSink // optional, nil = disabled
	metrics      MetricsSink   // optional, nil = disabled
	fullSnapshot bool
	clock        func() time.Time
}

// NewImporter creates an importer for adapter's source.
func NewImporter(adapter source.Adapter, store Store, embedder Embedder) *Importer {
	return &Importer{
		adapter:  adapter,
		store:    store,
		embedder: embedder,
		clock:    time.Now,
	}
}

// WithFullSnapshot marks the source as returning every live tender, which
// enables stale removal after a successful upsert.
func (i *Importer) WithFullSnapshot(full bool) *Importer {
	i.fullSnapshot = full
	return i
}

func (i *Importer) WithAnalytics(sink AnalyticsSink) *Importer {
	i.analytics = sink
	return i
}

// WithMetrics attaches a metrics sink to the importer.
func (i *Importer) WithMetrics(sink MetricsSink) *Importer {
	i.metrics = sink
	return i
}

// WithClock sets a custom clock function (for testing).
func (i *Importer) WithClock(clock func() time.Time) *Importer {
	i.clock = clock
	return i
}

// Kind returns the imported source.
func (i *Importer) Kind() domain.SourceKind {
	return i.adapter.Kind()
}

// Import runs the pipeline once. Failures are reported in the outcome,
// never returned, so a caller fanning out over sources sees every result.
func (i *Importer) Import(ctx context.Context) domain.SourceOutcome {
	kind := i.adapter.Kind()
	start := i.clock()
	out := domain.SourceOutcome{Source: kind}
	defer func() {
		out.Duration = i.clock().Sub(start)
		i.recordMetrics(out)
	}()

	records, err := i.adapter.Fetch(ctx)
	if err != nil {
		out.Err = err
		log.Printf("ingest: source=%s fetch failed: %v", kind, err)
		return out
	}
	out.Fetched = len(records)

	now := i.clock().UTC()
	tenders, mapErrs := canonical.Batch(kind, records, now)
	out.Rejected = len(mapErrs)
	for n, e := range mapErrs {
		if n == maxWarnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d more records rejected", len(mapErrs)-maxWarnings))
			break
		}
		out.Warnings = append(out.Warnings, e.Error())
	}

	tenders, dups := dedupe(tenders)
	if dups > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d duplicate records dropped", dups))
	}

	if len(tenders) > 0 && i.embedder != nil {
		if err := i.embed(ctx, tenders); err != nil {
			out.Degraded = true
			out.Warnings = append(out.Warnings, "stored without embeddings: "+err.Error())
			log.Printf("ingest: source=%s embedding degraded: %v", kind, err)
		}
	}

	imported, err := i.store.UpsertTenders(ctx, tenders)
	out.Imported = imported
	if err != nil {
		out.Err = &domain.PersistenceError{Source: kind, Op: "upsert", Err: err}
		log.Printf("ingest: source=%s upsert failed after %d rows: %v", kind, imported, err)
		return out
	}

	switch {
	case i.fullSnapshot && out.Rejected > 0:
		// A rejected record may be a stored tender that failed to map this time.
		out.Warnings = append(out.Warnings, fmt.Sprintf("stale removal skipped: %d records rejected", out.Rejected))
		log.Printf("ingest: source=%s stale removal skipped, %d records rejected", kind, out.Rejected)
	case i.fullSnapshot:
		removed, err := i.store.RemoveStale(ctx, kind, references(tenders))
		if err != nil {
			out.Err = &domain.PersistenceError{Source: kind, Op: "remove_stale", Err: err}
			log.Printf("ingest: source=%s stale removal failed: %v", kind, err)
			return out
		}
		out.StaleRemoved = removed
	}

	if i.analytics != nil {
		i.analytics.RecordImport(ctx, kind, imported, now)
	}

	log.Printf("ingest: source=%s fetched=%d imported=%d rejected=%d stale_removed=%d degraded=%v",
		kind, out.Fetched, out.Imported, out.Rejected, out.StaleRemoved, out.Degraded)
	return out
}

func (i *Importer) embed(ctx context.Context, tenders []domain.Tender) error {
	res, err := i.embedder.Embed(ctx, tenders)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
		}
		return err
	}
	for n := range tenders {
		if n < len(res.Vectors) {
			tenders[n].Embedding = res.Vectors[n]
		}
		if n < len(res.Inputs) {
			tenders[n].EmbeddingInput = res.Inputs[n]
		}
	}
	return nil
}

func (i *Importer) recordMetrics(out domain.SourceOutcome) {
	if i.metrics == nil {
		return
	}
	source := string(out.Source)
	outcome := "success"
	switch {
	case out.Err != nil:
		outcome = "failed"
	case out.Degraded:
		outcome = "degraded"
	}
	i.metrics.SourceImportCompleted(source, outcome, out.Duration, out.Imported, out.Rejected)
	if out.StaleRemoved > 0 {
		i.metrics.StaleRemoved(source, out.StaleRemoved)
	}
	if out.Degraded {
		i.metrics.EmbeddingDegraded(source)
	}
}

// dedupe keeps the first tender per id and per source reference, preserving
// order. Both keys are unique in the store.
func dedupe(tenders []domain.Tender) ([]domain.Tender, int) {
	seenID := make(map[string]bool, len(tenders))
	seenRef := make(map[string]bool, len(tenders))
	out := tenders[:0]
	for _, t := range tenders {
		if seenID[t.ID] || seenRef[t.SourceReference] {
			continue
		}
		seenID[t.ID] = true
		seenRef[t.SourceReference] = true
		out = append(out, t)
	}
	return out, len(tenders) - len(out)
}

func references(tenders []domain.Tender) []string {
	refs := make([]string, 0, len(tenders))
	for _, t := range tenders {
		refs = append(refs, t.SourceReference)
	}
	return refs
}

// DefaultSampleSize is the number of tenders Sample returns by default.
const DefaultSampleSize = 5

// Sample fetches the source and canonicalizes at most k records without
// touching the store or the embedding service. k < 0 returns everything.
func (i *Importer) Sample(ctx context.Context, k int) ([]domain.Tender, []error, error) {
	records, err := i.adapter.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	tenders, errs := canonical.Batch(i.adapter.Kind(), records, i.clock().UTC())
	if k >= 0 && len(tenders) > k {
		tenders = tenders[:k]
	}
	return tenders, errs, nil
}
