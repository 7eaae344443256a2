// Package circuitbreaker stops hitting an upstream source after repeated
// import failures until a cooldown has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type sourceState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per source. A threshold of 0
// disables it.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[domain.SourceKind]*sourceState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[domain.SourceKind]*sourceState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock sets a custom clock function (for testing).
func (cb *CircuitBreaker) WithClock(clock func() time.Time) *CircuitBreaker {
	cb.clock = clock
	return cb
}

// Allow returns ErrCircuitOpen while the source is cooling down. After the
// cooldown a single probe import is let through.
func (cb *CircuitBreaker) Allow(source domain.SourceKind) error {
	if cb.threshold <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[source]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(source domain.SourceKind) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[source]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

// RecordFailure counts a failed import. A failed half-open probe reopens the
// circuit immediately.
func (cb *CircuitBreaker) RecordFailure(source domain.SourceKind) {
	if cb.threshold <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[source]
	if !ok {
		s = &sourceState{}
		cb.states[source] = s
	}

	s.consecutiveFailures++
	if s.state == stateHalfOpen || s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}

// State reports the circuit state of source as "closed", "open" or
// "half_open".
func (cb *CircuitBreaker) State(source domain.SourceKind) string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[source]
	if !ok {
		return stateClosed.String()
	}
	return s.state.String()
}
