// Package searchsync pushes stored tenders into the external search index.
//
// Sync is best-effort: failures are retried with backoff, logged and
// counted, and never reported back to an import.
package searchsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/metrics"
)

var defaultBackoff = []time.Duration{
	0,
	5 * time.Second,
	30 * time.Second,
}

const maxAttempts = 3

// ErrSyncFailed is returned once every attempt has been used.
var ErrSyncFailed = errors.New("search sync failed")

type Sender interface {
	Send(ctx context.Context, tenderID string) Result
}

// MetricsSink defines the interface for recording search sync metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	SyncAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	SyncOutcome(outcome string)
	RetryAttempt(retryable bool)
	SyncsInFlightIncr()
	SyncsInFlightDecr()
}

// Summary is the search service's response body.
type Summary struct {
	Status       string `json:"status"`
	TotalTenders int    `json:"total_tenders,omitempty"`
	Indexed      int    `json:"indexed,omitempty"`
	Failed       int    `json:"failed,omitempty"`
	TenderID     string `json:"tender_id,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Result struct {
	StatusCode int
	Summary    Summary
	Error      error
	Duration   time.Duration
}

func (r Result) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r Result) IsRetryable() bool {
	if r.Error != nil {
		return true
	}
	if r.StatusCode == 429 {
		return true
	}
	return r.StatusCode >= 500
}

type Client struct {
	sender  Sender
	metrics MetricsSink // optional, nil = disabled
	backoff []time.Duration
}

func NewClient(sender Sender) *Client {
	return &Client{
		sender:  sender,
		backoff: defaultBackoff,
	}
}

// WithMetrics attaches a metrics sink to the client.
func (c *Client) WithMetrics(sink MetricsSink) *Client {
	c.metrics = sink
	return c
}

// WithBackoff replaces the retry delays. The last entry repeats.
func (c *Client) WithBackoff(backoff []time.Duration) *Client {
	c.backoff = backoff
	return c
}

// SyncAll re-indexes every stored tender.
func (c *Client) SyncAll(ctx context.Context) (Summary, error) {
	return c.sync(ctx, "")
}

// SyncOne re-indexes a single tender.
func (c *Client) SyncOne(ctx context.Context, tenderID string) (Summary, error) {
	if tenderID == "" {
		return Summary{}, errors.New("tender id is required")
	}
	return c.sync(ctx, tenderID)
}

// Sync handles a queued request.
func (c *Client) Sync(ctx context.Context, req domain.SyncRequest) error {
	summary, err := c.sync(ctx, req.TenderID)
	if err != nil {
		return err
	}
	if req.Full() {
		log.Printf("searchsync: reason=%s run=%s indexed=%d failed=%d total=%d",
			req.Reason, req.RunID, summary.Indexed, summary.Failed, summary.TotalTenders)
	}
	return nil
}

func (c *Client) sync(ctx context.Context, tenderID string) (Summary, error) {
	if c.metrics != nil {
		c.metrics.SyncsInFlightIncr()
		defer c.metrics.SyncsInFlightDecr()
	}

	target := "all"
	if tenderID != "" {
		target = "tender=" + tenderID
	}

	var lastResult Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if c.metrics != nil {
				c.metrics.RetryAttempt(lastResult.IsRetryable())
			}

			idx := attempt - 1
			if idx >= len(c.backoff) {
				idx = len(c.backoff) - 1
			}
			backoff := c.backoff[idx]

			log.Printf("searchsync: %s attempt=%d backoff=%s", target, attempt, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				c.outcome(metrics.OutcomeAbandoned)
				return Summary{}, ctx.Err()
			case <-timer.C:
			}
		}

		result := c.sender.Send(ctx, tenderID)
		lastResult = result

		if c.metrics != nil {
			c.metrics.SyncAttemptCompleted(attempt, metrics.ClassifyStatus(result.StatusCode, result.Error), result.Duration)
		}

		if result.IsSuccess() {
			log.Printf("searchsync: %s synced attempt=%d", target, attempt)
			c.outcome(metrics.OutcomeSuccess)
			return result.Summary, nil
		}

		if !result.IsRetryable() {
			log.Printf("searchsync: %s non-retryable status=%d", target, result.StatusCode)
			break
		}

		log.Printf("searchsync: %s attempt=%d failed status=%d err=%v", target, attempt, result.StatusCode, result.Error)
	}

	c.outcome(metrics.OutcomeFailed)
	if lastResult.Error != nil {
		return lastResult.Summary, fmt.Errorf("%w: %s: %w", ErrSyncFailed, target, lastResult.Error)
	}
	return lastResult.Summary, fmt.Errorf("%w: %s: status %d", ErrSyncFailed, target, lastResult.StatusCode)
}

func (c *Client) outcome(outcome string) {
	if c.metrics != nil {
		c.metrics.SyncOutcome(outcome)
	}
}
