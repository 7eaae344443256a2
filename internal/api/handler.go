package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/analytics"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/refresh"
	"github.com/FuJacob/mapletenders-sub000/internal/searchsync"
)

// recentImportDays is how many daily counters a source status includes.
const recentImportDays = 7

// Refresher runs and reports refreshes.
type Refresher interface {
	Refresh(ctx context.Context) (domain.RefreshResult, error)
	ImportSource(ctx context.Context, kind domain.SourceKind) (domain.RefreshResult, error)
	Status(ctx context.Context, scope string) (domain.ImportStatus, error)
	Sources() []domain.SourceKind
}

// Sampler fetches and canonicalizes a source without writing anything.
type Sampler interface {
	Sample(ctx context.Context, k int) ([]domain.Tender, []error, error)
}

type SearchSyncer interface {
	SyncAll(ctx context.Context) (searchsync.Summary, error)
	SyncOne(ctx context.Context, tenderID string) (searchsync.Summary, error)
}

type BreakerState interface {
	State(source domain.SourceKind) string
}

// NextRun reports the next scheduled refresh.
type NextRun interface {
	Next() (time.Time, error)
}

type ImportHistory interface {
	Recent(ctx context.Context, source domain.SourceKind, now time.Time, days int) ([]analytics.DayCount, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	refresher Refresher
	samplers  map[domain.SourceKind]Sampler
	syncer    SearchSyncer  // optional
	breaker   BreakerState  // optional
	schedule  NextRun       // optional
	history   ImportHistory // optional
	db        HealthChecker
	clock     func() time.Time
}

func NewHandler(refresher Refresher) *Handler {
	return &Handler{
		refresher: refresher,
		samplers:  make(map[domain.SourceKind]Sampler),
		clock:     time.Now,
	}
}

// WithSampler registers the sampler for one source.
func (h *Handler) WithSampler(kind domain.SourceKind, s Sampler) *Handler {
	h.samplers[kind] = s
	return h
}

func (h *Handler) WithSearchSyncer(s SearchSyncer) *Handler {
	h.syncer = s
	return h
}

func (h *Handler) WithBreaker(b BreakerState) *Handler {
	h.breaker = b
	return h
}

func (h *Handler) WithSchedule(n NextRun) *Handler {
	h.schedule = n
	return h
}

func (h *Handler) WithImportHistory(hist ImportHistory) *Handler {
	h.history = hist
	return h
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/refresh" && r.Method == http.MethodPost:
		h.refresh(w, r)

	case path == "/refresh/status" && r.Method == http.MethodGet:
		h.refreshStatus(w, r)

	case strings.HasPrefix(path, "/sources/") && strings.HasSuffix(path, "/import") && r.Method == http.MethodPost:
		h.importSource(w, r)

	case strings.HasPrefix(path, "/sources/") && strings.HasSuffix(path, "/status") && r.Method == http.MethodGet:
		h.sourceStatus(w, r)

	case strings.HasPrefix(path, "/sources/") && strings.HasSuffix(path, "/sample") && r.Method == http.MethodGet:
		h.sample(w, r)

	case (path == "/search/sync" || strings.HasPrefix(path, "/search/sync/")) && r.Method == http.MethodPost:
		h.searchSync(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	// A refresh outlives a disconnected client; the lock must still be released.
	ctx := context.WithoutCancel(r.Context())

	result, err := h.refresher.Refresh(ctx)
	if err != nil {
		log.Printf("api: refresh error: %v", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	writeJSON(w, refreshStatusCode(result), newRefreshResponse(result))
}

func (h *Handler) refreshStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.refresher.Status(r.Context(), refresh.ScopeAll)
	if err != nil {
		log.Printf("api: refresh status error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read refresh status")
		return
	}

	resp := newStatusResponse(status)
	if h.schedule != nil {
		if next, err := h.schedule.Next(); err == nil {
			resp.NextScheduledRun = formatTime(next)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) importSource(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.sourceFromPath(w, r.URL.Path, "import")
	if !ok {
		return
	}

	result, err := h.refresher.ImportSource(context.WithoutCancel(r.Context()), kind)
	if err != nil {
		if errors.Is(err, refresh.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, "source not configured")
			return
		}
		log.Printf("api: import %s error: %v", kind, err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	writeJSON(w, refreshStatusCode(result), newRefreshResponse(result))
}

func (h *Handler) sourceStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.sourceFromPath(w, r.URL.Path, "status")
	if !ok {
		return
	}

	status, err := h.refresher.Status(r.Context(), refresh.SourceScope(kind))
	if err != nil {
		log.Printf("api: status %s error: %v", kind, err)
		writeError(w, http.StatusInternalServerError, "failed to read source status")
		return
	}

	resp := newStatusResponse(status)
	if h.breaker != nil {
		resp.Breaker = h.breaker.State(kind)
	}
	if h.history != nil {
		recent, err := h.history.Recent(r.Context(), kind, h.clock(), recentImportDays)
		if err != nil {
			log.Printf("api: import history %s: %v", kind, err)
		} else {
			resp.RecentImports = recent
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sample(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.sourceFromPath(w, r.URL.Path, "sample")
	if !ok {
		return
	}

	sampler, ok := h.samplers[kind]
	if !ok {
		writeError(w, http.StatusNotFound, "source not configured")
		return
	}

	limit, err := parseSampleLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenders, mapErrs, err := sampler.Sample(r.Context(), limit)
	if err != nil {
		log.Printf("api: sample %s error: %v", kind, err)
		writeError(w, http.StatusBadGateway, "source fetch failed: "+err.Error())
		return
	}

	resp := SampleResponse{
		Source:  string(kind),
		Count:   len(tenders),
		Tenders: tenders,
	}
	if resp.Tenders == nil {
		resp.Tenders = []domain.Tender{}
	}
	for _, e := range mapErrs {
		resp.Errors = append(resp.Errors, e.Error())
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) searchSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "search sync not configured")
		return
	}

	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/search/sync"), "/")

	var (
		summary searchsync.Summary
		err     error
	)
	if id == "" {
		summary, err = h.syncer.SyncAll(r.Context())
	} else {
		if err := validateTenderID(id); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		summary, err = h.syncer.SyncOne(r.Context(), id)
	}
	if err != nil {
		log.Printf("api: search sync error: %v", err)
		writeError(w, http.StatusBadGateway, "search sync failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// sourceFromPath extracts and validates {kind} from /sources/{kind}/{action}.
func (h *Handler) sourceFromPath(w http.ResponseWriter, path, action string) (domain.SourceKind, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "sources" || parts[2] != action {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}

	kind, err := validateSource(parts[1], h.refresher.Sources())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// refreshStatusCode maps skip reasons onto HTTP: contention is a conflict,
// cooldown is a rate limit.
func refreshStatusCode(result domain.RefreshResult) int {
	if result.Status != domain.RefreshSkipped {
		return http.StatusOK
	}
	switch result.SkipReason {
	case domain.SkipLockContention:
		return http.StatusConflict
	case domain.SkipRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
