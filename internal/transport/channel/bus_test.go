package channel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func newTestRequest() domain.SyncRequest {
	return domain.SyncRequest{
		RunID:       uuid.New(),
		Reason:      "refresh",
		RequestedAt: time.Now().UTC(),
	}
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	bus := NewEventBus(10)
	req := newTestRequest()
	req.TenderID = "tor-123"

	if err := bus.Emit(context.Background(), req); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case got := <-bus.Channel():
		if got.RunID != req.RunID {
			t.Errorf("RunID = %v, want %v", got.RunID, req.RunID)
		}
		if got.TenderID != "tor-123" || got.Full() {
			t.Errorf("expected single-tender request, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for request on channel")
	}
}

func TestEventBus_BufferFull(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(50*time.Millisecond))
	ctx := context.Background()

	if err := bus.Emit(ctx, newTestRequest()); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	err := bus.Emit(ctx, newTestRequest())
	if err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got: %v", err)
	}
}

func TestEventBus_TryEmitNeverBlocks(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(time.Hour))

	if err := bus.TryEmit(newTestRequest()); err != nil {
		t.Fatalf("first TryEmit failed: %v", err)
	}

	start := time.Now()
	if err := bus.TryEmit(newTestRequest()); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("TryEmit waited for buffer space")
	}
}

func TestEventBus_ContextCancelled(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(5*time.Second))

	if err := bus.Emit(context.Background(), newTestRequest()); err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Emit(cancelledCtx, newTestRequest())
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestEventBus_ConcurrentProducers(t *testing.T) {
	// Refresh runs and the sweeper emit at the same time; every request must
	// arrive exactly once.
	const perProducer = 200
	bus := NewEventBus(2 * perProducer)

	var wg sync.WaitGroup
	for _, reason := range []string{"refresh", "sweep"} {
		wg.Add(1)
		go func(reason string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				req := domain.SyncRequest{Reason: reason, TenderID: fmt.Sprintf("%s-%d", reason, i)}
				if err := bus.Emit(context.Background(), req); err != nil {
					t.Errorf("Emit(%s) failed: %v", req.TenderID, err)
					return
				}
			}
		}(reason)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for len(seen) < 2*perProducer {
		select {
		case req := <-bus.Channel():
			if seen[req.TenderID] {
				t.Fatalf("request %s delivered twice", req.TenderID)
			}
			seen[req.TenderID] = true
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d requests", len(seen), 2*perProducer)
		}
	}
}

func TestEventBus_PreservesOrder(t *testing.T) {
	bus := NewEventBus(3)
	want := []string{"", "tor-1", "qc-2"} // full sync first, then single tenders

	for _, id := range want {
		if err := bus.TryEmit(domain.SyncRequest{TenderID: id}); err != nil {
			t.Fatalf("TryEmit(%q) failed: %v", id, err)
		}
	}
	for i, id := range want {
		got := <-bus.Channel()
		if got.TenderID != id {
			t.Errorf("request %d: TenderID = %q, want %q", i, got.TenderID, id)
		}
	}
}

func TestEventBus_EmitTimeoutOption(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{"default", nil, DefaultEmitTimeout},
		{"custom", []Option{WithEmitTimeout(100 * time.Millisecond)}, 100 * time.Millisecond},
		{"last wins", []Option{WithEmitTimeout(time.Minute), WithEmitTimeout(time.Second)}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewEventBus(1, tt.opts...)
			if bus.emitTimeout != tt.want {
				t.Errorf("emitTimeout = %v, want %v", bus.emitTimeout, tt.want)
			}
		})
	}
}

// recordingBusMetrics records what the bus reports.
type recordingBusMetrics struct {
	mu          sync.Mutex
	capacity    int
	sizes       []int
	saturations []float64
	emitErrors  int
}

func (m *recordingBusMetrics) BufferSizeUpdate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes = append(m.sizes, size)
}

func (m *recordingBusMetrics) BufferCapacitySet(capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capacity = capacity
}

func (m *recordingBusMetrics) BufferSaturationUpdate(saturation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saturations = append(m.saturations, saturation)
}

func (m *recordingBusMetrics) EmitError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErrors++
}

func TestEventBus_ReportsSaturation(t *testing.T) {
	metrics := &recordingBusMetrics{}
	bus := NewEventBus(4, WithMetrics(metrics))

	for i := 0; i < 2; i++ {
		if err := bus.TryEmit(newTestRequest()); err != nil {
			t.Fatalf("TryEmit failed: %v", err)
		}
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.capacity != 4 {
		t.Errorf("capacity = %d, want 4", metrics.capacity)
	}
	if len(metrics.sizes) != 2 || metrics.sizes[1] != 2 {
		t.Errorf("sizes = %v, want [1 2]", metrics.sizes)
	}
	if len(metrics.saturations) != 2 || metrics.saturations[1] != 0.5 {
		t.Errorf("saturations = %v, want [0.25 0.5]", metrics.saturations)
	}
}

func TestEventBus_CountsDroppedRequests(t *testing.T) {
	metrics := &recordingBusMetrics{}
	bus := NewEventBus(1, WithMetrics(metrics), WithEmitTimeout(10*time.Millisecond))

	bus.TryEmit(newTestRequest())
	// Buffer is full: one drop, one timeout.
	bus.TryEmit(newTestRequest())
	bus.Emit(context.Background(), newTestRequest())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.emitErrors != 2 {
		t.Errorf("emit errors = %d, want 2", metrics.emitErrors)
	}
}
