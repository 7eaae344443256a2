package api

import (
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/analytics"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

type SourceResult struct {
	Source       string   `json:"source"`
	Fetched      int      `json:"fetched"`
	Imported     int      `json:"imported"`
	Rejected     int      `json:"rejected"`
	StaleRemoved int64    `json:"stale_removed"`
	Degraded     bool     `json:"degraded,omitempty"`
	Skipped      bool     `json:"skipped,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Error        string   `json:"error,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
}

type RefreshResponse struct {
	RunID          string         `json:"run_id"`
	Status         string         `json:"status"`
	SkipReason     string         `json:"skip_reason,omitempty"`
	Message        string         `json:"message"`
	ImportedCount  int            `json:"imported_count"`
	ExpiredRemoved int64          `json:"expired_removed"`
	RefreshedAt    string         `json:"refreshed_at,omitempty"`
	HoursRemaining int            `json:"hours_remaining,omitempty"`
	LastRefreshAt  string         `json:"last_refresh_at,omitempty"`
	Sources        []SourceResult `json:"sources"`
}

type StatusResponse struct {
	Scope            string               `json:"scope"`
	CanImport        bool                 `json:"can_import"`
	Message          string               `json:"message"`
	HoursRemaining   int                  `json:"hours_remaining"`
	LastImportAt     string               `json:"last_import_at,omitempty"`
	InProgress       bool                 `json:"in_progress"`
	NextScheduledRun string               `json:"next_scheduled_run,omitempty"`
	Breaker          string               `json:"breaker,omitempty"`
	RecentImports    []analytics.DayCount `json:"recent_imports,omitempty"`
}

type SampleResponse struct {
	Source  string          `json:"source"`
	Count   int             `json:"count"`
	Tenders []domain.Tender `json:"tenders"`
	Errors  []string        `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func newRefreshResponse(r domain.RefreshResult) RefreshResponse {
	resp := RefreshResponse{
		RunID:          r.RunID.String(),
		Status:         string(r.Status),
		SkipReason:     string(r.SkipReason),
		Message:        r.Message,
		ImportedCount:  r.ImportedCount,
		ExpiredRemoved: r.ExpiredRemoved,
		RefreshedAt:    formatTime(r.RefreshedAt),
		HoursRemaining: r.HoursRemaining,
		LastRefreshAt:  formatTime(r.LastRefreshAt),
		Sources:        make([]SourceResult, len(r.Outcomes)),
	}
	for i, o := range r.Outcomes {
		resp.Sources[i] = SourceResult{
			Source:       string(o.Source),
			Fetched:      o.Fetched,
			Imported:     o.Imported,
			Rejected:     o.Rejected,
			StaleRemoved: o.StaleRemoved,
			Degraded:     o.Degraded,
			Skipped:      o.Skipped,
			Warnings:     o.Warnings,
			DurationMs:   o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			resp.Sources[i].Error = o.Err.Error()
		}
	}
	return resp
}

func newStatusResponse(s domain.ImportStatus) StatusResponse {
	return StatusResponse{
		Scope:          s.Scope,
		CanImport:      s.CanImport,
		Message:        s.Message,
		HoursRemaining: s.HoursRemaining,
		LastImportAt:   formatTime(s.LastImportAt),
		InProgress:     s.InProgress,
	}
}

// formatTime renders t as RFC3339 UTC; the zero time renders empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
