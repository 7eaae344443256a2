// Package channel is the in-process transport for search sync requests.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// ErrBufferFull is returned when the bus cannot accept a request in time.
var ErrBufferFull = errors.New("event bus buffer full")

// DefaultEmitTimeout is how long Emit waits for buffer space by default.
const DefaultEmitTimeout = time.Second

// MetricsSink defines the interface for recording bus metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

type EventBus struct {
	ch          chan domain.SyncRequest
	emitTimeout time.Duration
	metrics     MetricsSink
}

// Option configures an EventBus.
type Option func(*EventBus)

// WithEmitTimeout bounds how long Emit waits for buffer space.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		b.emitTimeout = d
	}
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.SyncRequest, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit queues req, waiting up to the emit timeout for space.
func (b *EventBus) Emit(ctx context.Context, req domain.SyncRequest) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- req:
		b.observe()
		return nil
	case <-timer.C:
		b.emitFailed()
		return ErrBufferFull
	case <-ctx.Done():
		b.emitFailed()
		return ctx.Err()
	}
}

// TryEmit queues req only if there is room right now.
func (b *EventBus) TryEmit(req domain.SyncRequest) error {
	select {
	case b.ch <- req:
		b.observe()
		return nil
	default:
		b.emitFailed()
		return ErrBufferFull
	}
}

func (b *EventBus) Channel() <-chan domain.SyncRequest {
	return b.ch
}

// Close stops the bus. Emitting after Close panics.
func (b *EventBus) Close() {
	close(b.ch)
}

func (b *EventBus) observe() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if c := cap(b.ch); c > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(c))
	}
}

func (b *EventBus) emitFailed() {
	if b.metrics != nil {
		b.metrics.EmitError()
	}
}
