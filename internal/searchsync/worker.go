package searchsync

import (
	"context"
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// DrainTimeout is the maximum time to wait for buffered requests during shutdown.
const DrainTimeout = 30 * time.Second

type Syncer interface {
	Sync(ctx context.Context, req domain.SyncRequest) error
}

// Worker consumes sync requests from the bus.
type Worker struct {
	syncer       Syncer
	drainTimeout time.Duration
}

func NewWorker(syncer Syncer) *Worker {
	return &Worker{syncer: syncer, drainTimeout: DrainTimeout}
}

// Run processes requests from the channel until context is cancelled.
// After cancellation, it drains remaining buffered requests with a timeout.
func (w *Worker) Run(ctx context.Context, ch <-chan domain.SyncRequest) {
	for {
		select {
		case <-ctx.Done():
			w.drain(ch)
			return
		case req, ok := <-ch:
			if !ok {
				return
			}
			if err := w.syncer.Sync(ctx, req); err != nil {
				log.Printf("searchsync: error: %v", err)
			}
		}
	}
}

// drain processes remaining requests in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (w *Worker) drain(ch <-chan domain.SyncRequest) {
	drainCtx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("searchsync: drain timeout, processed %d requests", count)
			}
			return
		case req, ok := <-ch:
			if !ok {
				log.Printf("searchsync: drain complete, processed %d requests", count)
				return
			}
			if err := w.syncer.Sync(drainCtx, req); err != nil {
				log.Printf("searchsync: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("searchsync: drain complete, processed %d requests", count)
			}
			return
		}
	}
}
