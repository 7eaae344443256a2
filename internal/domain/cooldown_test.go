package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCooldown_NeverRun(t *testing.T) {
	c := NewCooldown(DefaultCooldownWindow, time.Time{})
	now := time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC)

	if !c.Ready(now) {
		t.Error("expected never-run scope to be ready")
	}
	if got := c.HoursRemaining(now); got != 0 {
		t.Errorf("expected 0 hours remaining, got %d", got)
	}
	if !c.NextAllowed().IsZero() {
		t.Errorf("expected zero NextAllowed, got %v", c.NextAllowed())
	}
}

func TestCooldown_HoursRemaining(t *testing.T) {
	last := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
		ready   bool
	}{
		{"just ran", 0, 24, false},
		{"one minute later", time.Minute, 24, false},
		{"one hour later", time.Hour, 23, false},
		{"half hour left", 23*time.Hour + 30*time.Minute, 1, false},
		{"exactly elapsed", 24 * time.Hour, 0, true},
		{"long after", 72 * time.Hour, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCooldown(24*time.Hour, last)
			now := last.Add(tt.elapsed)
			if got := c.HoursRemaining(now); got != tt.want {
				t.Errorf("HoursRemaining = %d, want %d", got, tt.want)
			}
			if got := c.Ready(now); got != tt.ready {
				t.Errorf("Ready = %v, want %v", got, tt.ready)
			}
		})
	}
}

func TestCooldown_RemainingNeverNegative(t *testing.T) {
	last := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Hour, last)
	if got := c.Remaining(last.Add(5 * time.Hour)); got != 0 {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestSourceFetchError_Unwrap(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("import: %w", &SourceFetchError{Source: SourceToronto, Op: "browser", Err: base})

	if !errors.Is(err, base) {
		t.Error("expected errors.Is to find wrapped cause")
	}
	var fe *SourceFetchError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to find SourceFetchError")
	}
	if fe.Source != SourceToronto {
		t.Errorf("expected source toronto, got %s", fe.Source)
	}
}

func TestParseSourceKind(t *testing.T) {
	for _, k := range AllSources {
		got, err := ParseSourceKind(string(k))
		if err != nil {
			t.Errorf("ParseSourceKind(%q): unexpected error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseSourceKind(%q) = %q", k, got)
		}
	}
	if _, err := ParseSourceKind("atlantis"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRawRecord_Text(t *testing.T) {
	rec := RawRecord{Kind: SourceQuebec, Fields: map[string]any{
		"titre":   "  Déneigement  ",
		"id":      float64(123456),
		"ratio":   1.5,
		"missing": nil,
	}}

	if got := rec.Text("titre"); got != "Déneigement" {
		t.Errorf("expected trimmed title, got %q", got)
	}
	if got := rec.Text("id"); got != "123456" {
		t.Errorf("expected integral float to print without exponent, got %q", got)
	}
	if got := rec.Text("ratio"); got != "1.5" {
		t.Errorf("expected 1.5, got %q", got)
	}
	if got := rec.Text("missing"); got != "" {
		t.Errorf("expected empty for nil, got %q", got)
	}
	if got := rec.Text("absent"); got != "" {
		t.Errorf("expected empty for absent key, got %q", got)
	}
}

func TestRefreshResult_Failed(t *testing.T) {
	r := RefreshResult{Outcomes: []SourceOutcome{
		{Source: SourceCanadian, Imported: 10},
		{Source: SourceToronto, Err: errors.New("boom")},
		{Source: SourceOntario, Skipped: true},
	}}
	failed := r.Failed()
	if len(failed) != 1 || failed[0].Source != SourceToronto {
		t.Errorf("expected only toronto failed, got %+v", failed)
	}
	if r.Outcomes[2].Succeeded() {
		t.Error("skipped outcome should not count as succeeded")
	}
}
