package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/circuitbreaker"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/testutil"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// casStore behaves like the refresh_state row: acquisition is a single
// compare-and-set under the mutex.
type casStore struct {
	mu         sync.Mutex
	owner      string
	inProgress bool
	last       map[string]time.Time
	expired    int64
	acquires   int
	releases   int
	lockErr    error
}

func newCASStore() *casStore {
	return &casStore{last: make(map[string]time.Time)}
}

func (s *casStore) TryAcquireRefreshLock(ctx context.Context, owner string, staleAfter time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockErr != nil {
		return false, s.lockErr
	}
	if s.inProgress {
		return false, nil
	}
	s.inProgress = true
	s.owner = owner
	s.acquires++
	return true, nil
}

func (s *casStore) ReleaseRefreshLock(ctx context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress && s.owner == owner {
		s.inProgress = false
		s.owner = ""
		s.releases++
	}
	return nil
}

func (s *casStore) RefreshInProgress(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress, nil
}

func (s *casStore) LastRefresh(ctx context.Context, scope string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[scope]
	return t, ok, nil
}

func (s *casStore) SetLastRefresh(ctx context.Context, scope string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[scope] = t
	return nil
}

func (s *casStore) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.expired
	s.expired = 0
	return n, nil
}

func (s *casStore) locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

// stubImporter returns a fixed outcome, optionally blocking or panicking.
type stubImporter struct {
	kind     domain.SourceKind
	imported int
	err      error
	panics   bool
	started  chan struct{}
	block    chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *stubImporter) Kind() domain.SourceKind { return s.kind }

func (s *stubImporter) Import(ctx context.Context) domain.SourceOutcome {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("selector not found")
	}
	return domain.SourceOutcome{Source: s.kind, Imported: s.imported, Err: s.err}
}

func (s *stubImporter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingEmitter struct {
	mu       sync.Mutex
	requests []domain.SyncRequest
}

func (e *recordingEmitter) TryEmit(req domain.SyncRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	return nil
}

func newCoordinator(store Store, clock *testutil.FakeClock, importers ...Importer) *Coordinator {
	return New(DefaultConfig(), store, importers).WithClock(clock.Now)
}

func TestRefresh_PartialFailureIsolation(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	importers := []Importer{
		&stubImporter{kind: domain.SourceCanadian, imported: 2},
		&stubImporter{kind: domain.SourceToronto, err: &domain.SourceFetchError{Source: domain.SourceToronto, Op: "browser", Err: errors.New("timeout")}},
		&stubImporter{kind: domain.SourceOntario, imported: 3},
		&stubImporter{kind: domain.SourceQuebec, panics: true},
		&stubImporter{kind: domain.SourceHamilton, imported: 5},
	}

	res, err := newCoordinator(store, clock, importers...).Refresh(testutil.TestContext(t))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != domain.RefreshCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.ImportedCount != 10 {
		t.Errorf("expected 10 imported, got %d", res.ImportedCount)
	}
	if len(res.Outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(res.Outcomes))
	}

	failed := res.Failed()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed outcomes, got %d", len(failed))
	}
	if failed[0].Source != domain.SourceToronto || failed[1].Source != domain.SourceQuebec {
		t.Errorf("expected toronto and quebec to fail, got %s and %s", failed[0].Source, failed[1].Source)
	}
	if !errors.Is(failed[1].Err, ErrImportPanic) {
		t.Errorf("expected recovered panic, got %v", failed[1].Err)
	}
	if store.locked() {
		t.Error("expected lock released after refresh")
	}
	if _, ok := store.last[ScopeAll]; !ok {
		t.Error("expected last refresh recorded despite failures")
	}
}

func TestRefresh_RateLimited(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	imp := &stubImporter{kind: domain.SourceCanadian, imported: 1}
	c := newCoordinator(store, clock, imp)
	ctx := testutil.TestContext(t)

	if res, err := c.Refresh(ctx); err != nil || res.Status != domain.RefreshCompleted {
		t.Fatalf("first refresh: status=%s err=%v", res.Status, err)
	}

	clock.Advance(time.Hour)
	res, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != domain.RefreshSkipped || res.SkipReason != domain.SkipRateLimited {
		t.Fatalf("expected rate limited skip, got %s/%s", res.Status, res.SkipReason)
	}
	if res.HoursRemaining != 23 {
		t.Errorf("expected 23 hours remaining, got %d", res.HoursRemaining)
	}
	if !res.LastRefreshAt.Equal(start) {
		t.Errorf("expected last refresh %v, got %v", start, res.LastRefreshAt)
	}
	if res.Message != "Rate limited - wait 23 hours" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if store.locked() {
		t.Error("expected lock released after rate-limited skip")
	}
	if imp.callCount() != 1 {
		t.Errorf("expected importer to run once, got %d", imp.callCount())
	}

	clock.Advance(23 * time.Hour)
	res, err = c.Refresh(ctx)
	if err != nil || res.Status != domain.RefreshCompleted {
		t.Fatalf("expected refresh after cooldown, got status=%s err=%v", res.Status, err)
	}
}

func TestRefresh_LockMutualExclusion(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	slow := &stubImporter{
		kind:     domain.SourceCanadian,
		imported: 1,
		started:  make(chan struct{}),
		block:    make(chan struct{}),
	}
	c := newCoordinator(store, clock, slow)
	ctx := testutil.TestContext(t)

	type run struct {
		res domain.RefreshResult
		err error
	}
	first := make(chan run, 1)
	go func() {
		res, err := c.Refresh(ctx)
		first <- run{res, err}
	}()

	<-slow.started
	second, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if second.Status != domain.RefreshSkipped || second.SkipReason != domain.SkipLockContention {
		t.Errorf("expected lock contention skip, got %s/%s", second.Status, second.SkipReason)
	}

	close(slow.block)
	got := <-first
	if got.err != nil || got.res.Status != domain.RefreshCompleted {
		t.Errorf("expected first refresh to complete, got status=%s err=%v", got.res.Status, got.err)
	}
	if store.acquires != 1 {
		t.Errorf("expected exactly one lock acquisition, got %d", store.acquires)
	}
	if slow.callCount() != 1 {
		t.Errorf("expected exactly one import, got %d", slow.callCount())
	}
}

func TestRefresh_LockErrorIsReturned(t *testing.T) {
	store := newCASStore()
	store.lockErr = errors.New("connection refused")

	_, err := newCoordinator(store, testutil.NewFakeClock(start)).Refresh(testutil.TestContext(t))
	if err == nil {
		t.Fatal("expected lock bookkeeping error")
	}
}

func TestRefresh_RemovesExpiredAndRequestsSync(t *testing.T) {
	store := newCASStore()
	store.expired = 7
	emitter := &recordingEmitter{}
	c := newCoordinator(store, testutil.NewFakeClock(start),
		&stubImporter{kind: domain.SourceCanadian, imported: 4}).WithSyncEmitter(emitter)

	res, err := c.Refresh(testutil.TestContext(t))
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.ExpiredRemoved != 7 {
		t.Errorf("expected 7 expired removed, got %d", res.ExpiredRemoved)
	}
	if len(emitter.requests) != 1 || !emitter.requests[0].Full() {
		t.Fatalf("expected one full sync request, got %+v", emitter.requests)
	}
	if emitter.requests[0].RunID != res.RunID {
		t.Errorf("expected sync request for run %s, got %s", res.RunID, emitter.requests[0].RunID)
	}
}

func TestRefresh_NoSyncWithoutImports(t *testing.T) {
	emitter := &recordingEmitter{}
	c := newCoordinator(newCASStore(), testutil.NewFakeClock(start),
		&stubImporter{kind: domain.SourceCanadian, err: errors.New("down")}).WithSyncEmitter(emitter)

	if _, err := c.Refresh(testutil.TestContext(t)); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(emitter.requests) != 0 {
		t.Errorf("expected no sync request, got %d", len(emitter.requests))
	}
}

func TestRefresh_BreakerSkipsFailingSource(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	breaker := circuitbreaker.New(1, 72*time.Hour).WithClock(clock.Now)
	flaky := &stubImporter{kind: domain.SourceLondon, err: errors.New("blocked")}
	c := New(Config{Cooldown: time.Hour, MaxParallel: 2}, store, []Importer{flaky}).
		WithClock(clock.Now).
		WithBreaker(breaker)
	ctx := testutil.TestContext(t)

	c.Refresh(ctx)
	clock.Advance(time.Hour)
	res, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(res.Outcomes) != 1 || !res.Outcomes[0].Skipped {
		t.Fatalf("expected skipped outcome, got %+v", res.Outcomes)
	}
	if flaky.callCount() != 1 {
		t.Errorf("expected importer not called while open, got %d calls", flaky.callCount())
	}
}

func TestImportSource(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	tor := &stubImporter{kind: domain.SourceToronto, imported: 3}
	can := &stubImporter{kind: domain.SourceCanadian, imported: 9}
	c := newCoordinator(store, clock, can, tor)
	ctx := testutil.TestContext(t)

	res, err := c.ImportSource(ctx, domain.SourceToronto)
	if err != nil {
		t.Fatalf("ImportSource failed: %v", err)
	}
	if res.ImportedCount != 3 || can.callCount() != 0 {
		t.Errorf("expected only toronto imported, got %d (canadian calls %d)", res.ImportedCount, can.callCount())
	}
	if _, ok := store.last[SourceScope(domain.SourceToronto)]; !ok {
		t.Error("expected per-source last import recorded")
	}
	if _, ok := store.last[ScopeAll]; ok {
		t.Error("single-source import must not start the full refresh cooldown")
	}

	if _, err := c.ImportSource(ctx, domain.SourceBrampton); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestImportSource_FailureDoesNotStartCooldown(t *testing.T) {
	store := newCASStore()
	c := newCoordinator(store, testutil.NewFakeClock(start),
		&stubImporter{kind: domain.SourceOntario, err: errors.New("no download")})

	if _, err := c.ImportSource(testutil.TestContext(t), domain.SourceOntario); err != nil {
		t.Fatalf("ImportSource failed: %v", err)
	}
	if _, ok := store.last[SourceScope(domain.SourceOntario)]; ok {
		t.Error("expected failed import to leave the cooldown untouched")
	}
}

func TestStatus(t *testing.T) {
	store := newCASStore()
	clock := testutil.NewFakeClock(start)
	c := newCoordinator(store, clock)
	ctx := testutil.TestContext(t)

	st, err := c.Status(ctx, ScopeAll)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.CanImport || st.Message != "No previous import found" {
		t.Errorf("unexpected status before first run: %+v", st)
	}

	store.last[ScopeAll] = start.Add(-20 * time.Hour)
	st, _ = c.Status(ctx, ScopeAll)
	if st.CanImport || st.HoursRemaining != 4 {
		t.Errorf("expected 4 hours remaining, got %+v", st)
	}

	clock.Advance(4 * time.Hour)
	st, _ = c.Status(ctx, ScopeAll)
	if !st.CanImport || st.Message != "Ready to import" {
		t.Errorf("expected ready, got %+v", st)
	}

	store.inProgress = true
	st, _ = c.Status(ctx, ScopeAll)
	if st.CanImport || !st.InProgress {
		t.Errorf("expected in-progress refresh to block import, got %+v", st)
	}
}
