package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	errs := validateCommon(cfg)

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateOffline checks everything except settings that only matter when a
// database is attached (the sample command runs without one).
func ValidateOffline(cfg Config) error {
	if errs := validateCommon(cfg); len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCommon(cfg Config) ValidationErrors {
	var errs ValidationErrors

	positive := []struct {
		field string
		value string
	}{
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"REFRESH_COOLDOWN", cfg.RefreshCooldownStr},
		{"REFRESH_LOCK_STALE_AFTER", cfg.RefreshLockStaleAfterStr},
		{"SOURCE_TIMEOUT", cfg.SourceTimeoutStr},
		{"SWEEP_INTERVAL", cfg.SweepIntervalStr},
		{"EMBEDDING_TIMEOUT", cfg.EmbeddingTimeoutStr},
		{"SEARCH_SYNC_TIMEOUT", cfg.SearchSyncTimeoutStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"DOWNLOAD_WAIT", cfg.DownloadWaitStr},
	}
	for _, p := range positive {
		if p.value == "" {
			continue
		}
		d, err := time.ParseDuration(p.value)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: "must be positive",
			})
		}
	}

	// A stale lock window shorter than a single source timeout would let a
	// second process steal a lock from a refresh that is still running.
	if cfg.RefreshLockStaleAfter > 0 && cfg.SourceTimeout > 0 && cfg.RefreshLockStaleAfter <= cfg.SourceTimeout {
		errs = append(errs, ValidationError{
			Field:   "REFRESH_LOCK_STALE_AFTER",
			Message: fmt.Sprintf("must be longer than SOURCE_TIMEOUT (%s)", cfg.SourceTimeoutStr),
		})
	}

	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "REFRESH_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.RefreshTimezone != "" {
		if _, err := time.LoadLocation(cfg.RefreshTimezone); err != nil {
			errs = append(errs, ValidationError{
				Field:   "REFRESH_TIMEZONE",
				Message: fmt.Sprintf("unknown timezone: %v", err),
			})
		}
	}

	endpoints := []struct {
		field string
		value string
	}{
		{"EMBEDDING_URL", cfg.EmbeddingURL},
		{"SEARCH_SYNC_URL", cfg.SearchSyncURL},
		{"OPEN_TENDER_NOTICES_URL", cfg.OpenTenderNoticesURL},
		{"TORONTO_API_URL", cfg.TorontoAPIURL},
		{"ONTARIO_PORTAL_URL", cfg.OntarioPortalURL},
		{"QUEBEC_API_URL", cfg.QuebecAPIURL},
	}
	for _, e := range endpoints {
		if e.value == "" {
			continue
		}
		if msg := checkURL(e.value); msg != "" {
			errs = append(errs, ValidationError{Field: e.field, Message: msg})
		}
	}

	for _, name := range cfg.SourcesEnabled {
		if _, err := domain.ParseSourceKind(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   "SOURCES_ENABLED",
				Message: err.Error(),
			})
		}
	}

	return errs
}

func checkURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("must be an http(s) URL, got scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "missing host"
	}
	return ""
}
