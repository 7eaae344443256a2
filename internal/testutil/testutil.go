// Package testutil provides shared test helpers for tenderingest.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Tenders builds minimal canonical tenders for source, one per reference.
// IDs are "<source>-<ref>".
func Tenders(source domain.SourceKind, refs ...string) []domain.Tender {
	out := make([]domain.Tender, len(refs))
	for i, ref := range refs {
		out[i] = domain.Tender{
			ID:              string(source) + "-" + ref,
			Source:          source,
			SourceReference: ref,
			Title:           "Tender " + ref,
			Currency:        domain.DefaultCurrency,
		}
	}
	return out
}
