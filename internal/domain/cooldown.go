package domain

import (
	"math"
	"time"
)

// DefaultCooldownWindow is the minimum spacing between two refreshes of the
// same scope.
const DefaultCooldownWindow = 24 * time.Hour

// Cooldown gates a refresh scope on the time of its last successful run.
// A zero Last means the scope has never run.
type Cooldown struct {
	Window time.Duration
	Last   time.Time
}

// NewCooldown returns a Cooldown for the given window and last run.
func NewCooldown(window time.Duration, last time.Time) Cooldown {
	return Cooldown{Window: window, Last: last}
}

// Remaining returns how long until the scope may run again, never negative.
func (c Cooldown) Remaining(now time.Time) time.Duration {
	if c.Last.IsZero() {
		return 0
	}
	left := c.Last.Add(c.Window).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Ready reports whether the window has elapsed.
func (c Cooldown) Ready(now time.Time) bool {
	return c.Remaining(now) == 0
}

// HoursRemaining rounds the remaining time up to whole hours.
func (c Cooldown) HoursRemaining(now time.Time) int {
	left := c.Remaining(now)
	if left == 0 {
		return 0
	}
	return int(math.Ceil(left.Hours()))
}

// NextAllowed returns the earliest time the scope may run.
func (c Cooldown) NextAllowed() time.Time {
	if c.Last.IsZero() {
		return time.Time{}
	}
	return c.Last.Add(c.Window)
}
