package testutil

import (
	"testing"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func TestFakeClock_Now(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	got := clock.Now()
	if !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
}

func TestFakeClock_Advance(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	clock.Advance(5 * time.Minute)

	want := fixed.Add(5 * time.Minute)
	got := clock.Now()
	if !got.Equal(want) {
		t.Errorf("after Advance(5m), Now() = %v, want %v", got, want)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestFakeClock_Set(t *testing.T) {
	clock := NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	want := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
	clock.Set(want)

	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("after Set, Now() = %v, want %v", got, want)
	}
}

func TestTenders(t *testing.T) {
	got := Tenders(domain.SourceQuebec, "Q-1", "Q-2")
	if len(got) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(got))
	}
	if got[0].ID != "quebec-Q-1" || got[1].ID != "quebec-Q-2" {
		t.Errorf("unexpected ids: %q, %q", got[0].ID, got[1].ID)
	}
	for _, tender := range got {
		if tender.Source != domain.SourceQuebec {
			t.Errorf("tender %s: source = %q, want quebec", tender.ID, tender.Source)
		}
		if tender.Currency != "CAD" {
			t.Errorf("tender %s: currency = %q, want CAD", tender.ID, tender.Currency)
		}
		if tender.HasEmbedding() {
			t.Errorf("tender %s: fixture should not carry a vector", tender.ID)
		}
	}
}
