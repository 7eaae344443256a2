package cron

import (
	"testing"
	"time"
)

func TestParser_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"nightly 3am", "0 3 * * *"},
		{"every 6 hours", "0 */6 * * *"},
		{"weekday mornings", "30 6 * * 1-5"},
		{"daily descriptor", "@daily"},
		{"every descriptor", "@every 12h"},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "UTC")
			if err != nil {
				t.Errorf("Parse(%q, UTC) returned error: %v", tt.expr, err)
			}
			if sched == nil {
				t.Errorf("Parse(%q, UTC) returned nil schedule", tt.expr)
			}
		})
	}
}

func TestParser_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"six fields", "0 0 3 * * *"},
		{"invalid hour 25", "0 25 * * *"},
		{"unknown descriptor", "@fortnightly"},
		{"empty", ""},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q, UTC) should return error for invalid expression", tt.expr)
			}
		})
	}
}

func TestParser_InvalidTimezone(t *testing.T) {
	p := NewParser()
	if _, err := p.Parse("0 3 * * *", "Canada/Nowhere"); err == nil {
		t.Error("Parse with unknown timezone should return error")
	}
}

func TestParser_NextCalculation(t *testing.T) {
	p := NewParser()

	sched, err := p.Parse("0 3 * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	if next := sched.Next(after); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, next, want)
	}

	after2 := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	want2 := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	if next := sched.Next(after2); !next.Equal(want2) {
		t.Errorf("Next(%v) = %v, want %v", after2, next, want2)
	}
}

func TestParser_NextCalculation_Timezone(t *testing.T) {
	p := NewParser()

	// 03:00 in Toronto during EDT is 07:00 UTC.
	sched, err := p.Parse("0 3 * * *", "America/Toronto")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ref := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 6, 15, 7, 0, 0, 0, time.UTC)
	if next := sched.Next(ref); !next.UTC().Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", ref, next.UTC(), want)
	}
}

func TestParser_DSTSpringForward(t *testing.T) {
	p := NewParser()
	toronto := mustLoadLocation("America/Toronto")

	// March 9 2025: 2:30 AM does not exist in Toronto.
	sched, err := p.Parse("30 2 * * *", "America/Toronto")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	before := time.Date(2025, 3, 9, 1, 0, 0, 0, toronto)
	next := sched.Next(before)

	gap := time.Date(2025, 3, 9, 2, 30, 0, 0, toronto)
	if next.Equal(gap) && next.Hour() == 2 {
		t.Error("should not schedule inside the DST gap")
	}
	if !next.After(before) {
		t.Errorf("Next() should be after reference time, got %v", next)
	}
}

func TestShortestGap(t *testing.T) {
	p := NewParser()
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // Monday

	tests := []struct {
		name string
		expr string
		want time.Duration
	}{
		{"every 6h", "@every 6h", 6 * time.Hour},
		{"daily", "@daily", 24 * time.Hour},
		{"twice daily uneven", "0 6,9 * * *", 3 * time.Hour},
		{"weekdays only", "0 7 * * 1-5", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := p.Parse(tt.expr, "UTC")
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := ShortestGap(sched, start, 8); got != tt.want {
				t.Errorf("ShortestGap(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestShortestGap_SingleFire(t *testing.T) {
	sched, err := NewParser().Parse("@hourly", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := ShortestGap(sched, time.Now(), 1); got != 0 {
		t.Errorf("expected 0 for a single fire, got %v", got)
	}
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("mustLoadLocation: " + err.Error())
	}
	return loc
}
