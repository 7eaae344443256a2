package domain

import (
	"time"

	"github.com/google/uuid"
)

type RefreshStatus string

const (
	RefreshCompleted RefreshStatus = "completed"
	RefreshSkipped   RefreshStatus = "skipped"
)

type SkipReason string

const (
	SkipLockContention SkipReason = "lock_contention"
	SkipRateLimited    SkipReason = "rate_limited"
)

// SourceOutcome is the result of importing one source during a refresh.
type SourceOutcome struct {
	Source       SourceKind
	Fetched      int
	Imported     int
	Rejected     int // records that failed canonicalization
	StaleRemoved int64
	Degraded     bool // persisted without embeddings
	Skipped      bool // circuit breaker open
	Warnings     []string
	Err          error
	Duration     time.Duration
}

// Succeeded reports whether the import completed.
func (o SourceOutcome) Succeeded() bool {
	return o.Err == nil && !o.Skipped
}

// RefreshResult describes what one refresh invocation did.
type RefreshResult struct {
	RunID          uuid.UUID
	Status         RefreshStatus
	SkipReason     SkipReason
	Message        string
	ImportedCount  int
	ExpiredRemoved int64
	RefreshedAt    time.Time
	HoursRemaining int
	LastRefreshAt  time.Time
	Outcomes       []SourceOutcome
}

// Failed returns the outcomes that ended in an error.
func (r RefreshResult) Failed() []SourceOutcome {
	var failed []SourceOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// ImportStatus answers "may this scope import right now".
type ImportStatus struct {
	Scope          string
	CanImport      bool
	Message        string
	HoursRemaining int
	LastImportAt   time.Time
	InProgress     bool
}
