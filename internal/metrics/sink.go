package metrics

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickStarted()
	TickCompleted(duration time.Duration, refreshesTriggered int, err error)
	TickDrift(drift time.Duration)

	// Refresh metrics
	RefreshCompleted(scope string, duration time.Duration, imported, failed int)
	RefreshSkipped(scope, reason string)
	ExpiredRemoved(n int64)
	SourceSkipped(source string)

	// Import metrics
	SourceImportCompleted(source, outcome string, duration time.Duration, imported, rejected int)
	StaleRemoved(source string, n int64)
	EmbeddingDegraded(source string)

	// Search sync metrics
	SyncAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	SyncOutcome(outcome string)
	RetryAttempt(retryable bool)
	SyncsInFlightIncr()
	SyncsInFlightDecr()

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// Outcome constants for SyncOutcome and SourceImportCompleted.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeDegraded  = "degraded"
)

// StatusClass constants for SyncAttemptCompleted metric.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassCanceled        = "canceled"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a search sync response or transport error to a status
// class. Cancellation is reported separately so shutdown drains do not show
// up as timeouts.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return StatusClassCanceled
		case errors.Is(err, context.DeadlineExceeded):
			return StatusClassTimeout
		}
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return StatusClassTimeout
		}
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "no such host") || strings.Contains(msg, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
