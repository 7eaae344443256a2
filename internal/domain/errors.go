package domain

import (
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable marks an embedding failure the importer degrades
// around instead of aborting.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// ErrLockContention and ErrRateLimited describe expected skip outcomes.
// Refresh reports them through RefreshResult.SkipReason, never as errors.
var (
	ErrLockContention = errors.New("refresh already in progress")
	ErrRateLimited    = errors.New("refresh rate limited")
)

// SourceFetchError is returned by adapters when an upstream fetch fails.
type SourceFetchError struct {
	Source SourceKind
	Op     string // "http", "browser", "download", "parse"
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Op, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// MappingError describes a single raw record that could not be canonicalized.
type MappingError struct {
	Source SourceKind
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map %s record: %s %s", e.Source, e.Field, e.Reason)
}

// PersistenceError wraps a store failure during one source's import.
type PersistenceError struct {
	Source SourceKind
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%s): %v", e.Source, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
