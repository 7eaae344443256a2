// Package sweeper removes expired tenders between refreshes.
//
// A tender is expired once its closing date has passed. Refresh removes them
// too, but refreshes run at most once per cooldown window; the sweeper keeps
// the table clean in between. When rows are removed a full search sync is
// requested so the index drops them as well.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// Store defines the interface for removing expired tenders.
type Store interface {
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

// EventEmitter defines the interface for requesting a search sync.
type EventEmitter interface {
	Emit(ctx context.Context, req domain.SyncRequest) error
}

// MetricsSink defines the interface for recording sweeper metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ExpiredRemoved(n int64)
}

// Config holds sweeper configuration.
type Config struct {
	// Interval is how often the sweeper runs.
	// Default: 1 hour.
	Interval time.Duration

	// Grace keeps tenders for this long after their closing date.
	// Default: 0.
	Grace time.Duration
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
	}
}

// Sweeper periodically deletes expired tenders.
type Sweeper struct {
	config  Config
	store   Store
	emitter EventEmitter // optional, nil = no search sync
	metrics MetricsSink  // optional, nil = disabled
	clock   func() time.Time
}

// New creates a new Sweeper.
func New(config Config, store Store, emitter EventEmitter) *Sweeper {
	return &Sweeper{
		config:  config,
		store:   store,
		emitter: emitter,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink to the sweeper.
func (s *Sweeper) WithMetrics(sink MetricsSink) *Sweeper {
	s.metrics = sink
	return s
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Printf("sweeper: started (interval=%s, grace=%s)", s.config.Interval, s.config.Grace)

	// Run immediately on startup, then on ticker
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one sweep and returns the number of removed tenders.
func (s *Sweeper) runCycle(ctx context.Context) int64 {
	now := s.clock().UTC()
	cutoff := now.Add(-s.config.Grace)

	removed, err := s.store.RemoveExpired(ctx, cutoff)
	if err != nil {
		// DB error: log and abort cycle. Will retry next interval.
		log.Printf("sweeper: failed to remove expired tenders: %v", err)
		return 0
	}

	if removed == 0 {
		return 0
	}

	log.Printf("sweeper: removed %d tenders closed before %s", removed, cutoff.Format(time.RFC3339))
	if s.metrics != nil {
		s.metrics.ExpiredRemoved(removed)
	}

	if s.emitter != nil {
		req := domain.SyncRequest{Reason: "sweep", RequestedAt: now}
		if err := s.emitter.Emit(ctx, req); err != nil {
			// The next refresh or sweep requests another sync.
			log.Printf("sweeper: failed to request search sync: %v", err)
		}
	}
	return removed
}
