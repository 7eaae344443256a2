// Package refresh orchestrates a full tender refresh across every enabled
// source.
//
// A refresh runs under a single database lock and at most once per cooldown
// window. Expired tenders are removed first, then every source is imported
// concurrently. A failing or panicking source never aborts the others; each
// one reports a domain.SourceOutcome and the refresh completes with whatever
// succeeded.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// ScopeAll is the cooldown scope of a full refresh.
const ScopeAll = "all"

// releaseTimeout bounds lock release after the run context is gone.
const releaseTimeout = 10 * time.Second

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrImportPanic   = errors.New("import panicked")
)

// SourceScope is the cooldown scope of a single-source import.
func SourceScope(kind domain.SourceKind) string {
	return "source:" + string(kind)
}

// Store is the bookkeeping a refresh needs.
type Store interface {
	TryAcquireRefreshLock(ctx context.Context, owner string, staleAfter time.Duration) (bool, error)
	ReleaseRefreshLock(ctx context.Context, owner string) error
	RefreshInProgress(ctx context.Context) (bool, error)
	LastRefresh(ctx context.Context, scope string) (time.Time, bool, error)
	SetLastRefresh(ctx context.Context, scope string, t time.Time) error
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

// Importer imports one source and reports how it went.
type Importer interface {
	Kind() domain.SourceKind
	Import(ctx context.Context) domain.SourceOutcome
}

// Breaker decides whether a source is healthy enough to be imported.
type Breaker interface {
	Allow(source domain.SourceKind) error
	RecordSuccess(source domain.SourceKind)
	RecordFailure(source domain.SourceKind)
}

// SyncEmitter queues a search sync without waiting.
type SyncEmitter interface {
	TryEmit(req domain.SyncRequest) error
}

// MetricsSink defines the interface for recording refresh metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	RefreshCompleted(scope string, duration time.Duration, imported, failed int)
	RefreshSkipped(scope, reason string)
	ExpiredRemoved(n int64)
	SourceSkipped(source string)
}

// Config holds coordinator configuration.
type Config struct {
	// Cooldown is the minimum spacing between two runs of a scope.
	// Default: 24 hours.
	Cooldown time.Duration

	// LockStaleAfter is the age after which a held lock may be taken over.
	// Default: 2 hours.
	LockStaleAfter time.Duration

	// MaxParallel bounds concurrently running sources. 0 means unbounded.
	// Default: 4.
	MaxParallel int

	// SourceTimeout bounds a single source import. 0 disables it.
	// Default: 3 minutes.
	SourceTimeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		Cooldown:       domain.DefaultCooldownWindow,
		LockStaleAfter: 2 * time.Hour,
		MaxParallel:    4,
		SourceTimeout:  3 * time.Minute,
	}
}

// Coordinator runs refreshes.
type Coordinator struct {
	config    Config
	store     Store
	importers []Importer
	breaker   Breaker     // optional, nil = every source always runs
	emitter   SyncEmitter // optional, nil = no search sync
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

// New creates a coordinator over importers, run in the given order.
func New(config Config, store Store, importers []Importer) *Coordinator {
	return &Coordinator{
		config:    config,
		store:     store,
		importers: importers,
		clock:     time.Now,
	}
}

func (c *Coordinator) WithBreaker(b Breaker) *Coordinator {
	c.breaker = b
	return c
}

// WithSyncEmitter requests a full search sync after refreshes that imported
// something.
func (c *Coordinator) WithSyncEmitter(e SyncEmitter) *Coordinator {
	c.emitter = e
	return c
}

// WithMetrics attaches a metrics sink to the coordinator.
func (c *Coordinator) WithMetrics(sink MetricsSink) *Coordinator {
	c.metrics = sink
	return c
}

// WithClock sets a custom clock function (for testing).
func (c *Coordinator) WithClock(clock func() time.Time) *Coordinator {
	c.clock = clock
	return c
}

// Sources lists the sources a full refresh imports.
func (c *Coordinator) Sources() []domain.SourceKind {
	kinds := make([]domain.SourceKind, 0, len(c.importers))
	for _, imp := range c.importers {
		kinds = append(kinds, imp.Kind())
	}
	return kinds
}

// Refresh imports every source. A skipped refresh is not an error; err is
// set only when lock or cooldown bookkeeping fails.
func (c *Coordinator) Refresh(ctx context.Context) (domain.RefreshResult, error) {
	return c.run(ctx, ScopeAll, c.importers)
}

// ImportSource imports one source under the same lock as Refresh, with its
// own cooldown scope.
func (c *Coordinator) ImportSource(ctx context.Context, kind domain.SourceKind) (domain.RefreshResult, error) {
	for _, imp := range c.importers {
		if imp.Kind() == kind {
			return c.run(ctx, SourceScope(kind), []Importer{imp})
		}
	}
	return domain.RefreshResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, kind)
}

func (c *Coordinator) run(ctx context.Context, scope string, importers []Importer) (domain.RefreshResult, error) {
	runID := uuid.New()
	owner := runID.String()
	start := c.clock()
	result := domain.RefreshResult{RunID: runID}

	acquired, err := c.store.TryAcquireRefreshLock(ctx, owner, c.config.LockStaleAfter)
	if err != nil {
		return result, fmt.Errorf("acquire refresh lock: %w", err)
	}
	if !acquired {
		log.Printf("refresh: run=%s scope=%s skipped, lock held elsewhere", runID, scope)
		return c.skip(result, scope, domain.SkipLockContention, domain.ErrLockContention.Error()), nil
	}
	defer c.release(ctx, owner)

	now := c.clock().UTC()
	last, ok, err := c.store.LastRefresh(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("read last refresh: %w", err)
	}
	if ok {
		cd := domain.NewCooldown(c.config.Cooldown, last)
		if !cd.Ready(now) {
			result.HoursRemaining = cd.HoursRemaining(now)
			result.LastRefreshAt = last
			log.Printf("refresh: run=%s scope=%s skipped, rate limited for %dh", runID, scope, result.HoursRemaining)
			return c.skip(result, scope, domain.SkipRateLimited, rateLimitedMessage(result.HoursRemaining)), nil
		}
	}

	log.Printf("refresh: run=%s scope=%s started, sources=%d", runID, scope, len(importers))

	if scope == ScopeAll {
		removed, err := c.store.RemoveExpired(ctx, now)
		if err != nil {
			// Not fatal: the sweeper and the next refresh retry it.
			log.Printf("refresh: run=%s failed to remove expired tenders: %v", runID, err)
		} else {
			result.ExpiredRemoved = removed
			if c.metrics != nil && removed > 0 {
				c.metrics.ExpiredRemoved(removed)
			}
		}
	}

	result.Outcomes = c.fanOut(ctx, importers)

	failed := 0
	for _, o := range result.Outcomes {
		result.ImportedCount += o.Imported
		if o.Err != nil {
			failed++
			log.Printf("refresh: run=%s source=%s failed: %v", runID, o.Source, o.Err)
		}
	}

	result.Status = domain.RefreshCompleted
	result.RefreshedAt = c.clock().UTC()

	// A single source that failed may be retried right away; a full refresh
	// always starts its cooldown.
	if scope == ScopeAll || failed == 0 {
		if err := c.store.SetLastRefresh(ctx, scope, result.RefreshedAt); err != nil {
			return result, fmt.Errorf("record last refresh: %w", err)
		}
	}

	result.Message = fmt.Sprintf("imported %d tenders from %d sources, %d failed",
		result.ImportedCount, len(result.Outcomes)-failed, failed)
	log.Printf("refresh: run=%s scope=%s completed, imported=%d expired_removed=%d failed=%d duration=%s",
		runID, scope, result.ImportedCount, result.ExpiredRemoved, failed, c.clock().Sub(start).Round(time.Millisecond))

	if c.metrics != nil {
		c.metrics.RefreshCompleted(scope, c.clock().Sub(start), result.ImportedCount, failed)
	}

	if result.ImportedCount > 0 {
		c.requestSync(runID, result.RefreshedAt)
	}
	return result, nil
}

// fanOut runs importers concurrently. Tasks never return an error to the
// group, so one failure does not cancel its siblings.
func (c *Coordinator) fanOut(ctx context.Context, importers []Importer) []domain.SourceOutcome {
	outcomes := make([]domain.SourceOutcome, len(importers))

	var g errgroup.Group
	if c.config.MaxParallel > 0 {
		g.SetLimit(c.config.MaxParallel)
	}
	for idx, imp := range importers {
		g.Go(func() error {
			outcomes[idx] = c.importOne(ctx, imp)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) importOne(ctx context.Context, imp Importer) (out domain.SourceOutcome) {
	kind := imp.Kind()

	if c.breaker != nil {
		if err := c.breaker.Allow(kind); err != nil {
			log.Printf("refresh: source=%s skipped: %v", kind, err)
			if c.metrics != nil {
				c.metrics.SourceSkipped(string(kind))
			}
			return domain.SourceOutcome{Source: kind, Skipped: true, Warnings: []string{err.Error()}}
		}
	}

	taskCtx := ctx
	if c.config.SourceTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.config.SourceTimeout)
		defer cancel()
	}

	start := c.clock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("refresh: source=%s panicked: %v\n%s", kind, r, debug.Stack())
			out = domain.SourceOutcome{
				Source:   kind,
				Err:      fmt.Errorf("%w: %v", ErrImportPanic, r),
				Duration: c.clock().Sub(start),
			}
		}
		if out.Source == "" {
			out.Source = kind
		}
		c.recordBreaker(out)
	}()

	return imp.Import(taskCtx)
}

func (c *Coordinator) recordBreaker(out domain.SourceOutcome) {
	if c.breaker == nil {
		return
	}
	if out.Err != nil {
		c.breaker.RecordFailure(out.Source)
	} else {
		c.breaker.RecordSuccess(out.Source)
	}
}

func (c *Coordinator) requestSync(runID uuid.UUID, at time.Time) {
	if c.emitter == nil {
		return
	}
	req := domain.SyncRequest{RunID: runID, Reason: "refresh", RequestedAt: at}
	if err := c.emitter.TryEmit(req); err != nil {
		log.Printf("refresh: run=%s search sync not queued: %v", runID, err)
	}
}

func (c *Coordinator) release(ctx context.Context, owner string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := c.store.ReleaseRefreshLock(releaseCtx, owner); err != nil {
		log.Printf("refresh: failed to release lock owner=%s: %v", owner, err)
	}
}

func (c *Coordinator) skip(result domain.RefreshResult, scope string, reason domain.SkipReason, msg string) domain.RefreshResult {
	result.Status = domain.RefreshSkipped
	result.SkipReason = reason
	result.Message = msg
	if c.metrics != nil {
		c.metrics.RefreshSkipped(scope, string(reason))
	}
	return result
}

// Status reports whether scope may run now.
func (c *Coordinator) Status(ctx context.Context, scope string) (domain.ImportStatus, error) {
	status := domain.ImportStatus{Scope: scope}

	inProgress, err := c.store.RefreshInProgress(ctx)
	if err != nil {
		return status, fmt.Errorf("read refresh lock: %w", err)
	}
	status.InProgress = inProgress

	last, ok, err := c.store.LastRefresh(ctx, scope)
	if err != nil {
		return status, fmt.Errorf("read last refresh: %w", err)
	}

	now := c.clock().UTC()
	if ok {
		status.LastImportAt = last
		status.HoursRemaining = domain.NewCooldown(c.config.Cooldown, last).HoursRemaining(now)
	}

	switch {
	case inProgress:
		status.Message = domain.ErrLockContention.Error()
	case !ok:
		status.CanImport = true
		status.Message = "No previous import found"
	case status.HoursRemaining > 0:
		status.Message = rateLimitedMessage(status.HoursRemaining)
	default:
		status.CanImport = true
		status.Message = "Ready to import"
	}
	return status, nil
}

func rateLimitedMessage(hours int) string {
	return fmt.Sprintf("Rate limited - wait %d hours", hours)
}
