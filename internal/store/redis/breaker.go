package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrStoreUnavailable is returned when the breaker is rejecting store calls.
// It is distinct from a cache miss, so callers can tell "not cached" apart
// from "store down" and decide to fail open or closed.
var ErrStoreUnavailable = errors.New("store unavailable")

// breakerState is the breaker's position.
type breakerState int

const (
	breakerClosed   breakerState = iota // store calls pass through
	breakerOpen                         // store calls rejected immediately
	breakerHalfOpen                     // one probe call allowed through
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips after maxFailures consecutive store errors and rejects
// further calls for cooldown. After the cooldown one probe is allowed:
// success closes the breaker, failure reopens it. This keeps a dead Redis
// from stalling every request on connection timeouts while still surfacing
// the outage as ErrStoreUnavailable rather than a silent miss.
type Breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time

	// OnStateChange, if set, observes transitions (metrics hook).
	OnStateChange func(from, to string)
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after cooldown.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Allow reports whether a store call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if time.Since(b.lastFailure) <= b.cooldown {
			return false
		}
		b.transition(breakerHalfOpen)
	}
	return true
}

// Record feeds the outcome of a store call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()
		if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
			b.transition(breakerOpen)
		}
		return
	}

	if b.state == breakerHalfOpen {
		b.transition(breakerClosed)
	}
	b.failures = 0
}

// State returns the current state as a string for logs and metrics.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

func (b *Breaker) transition(to breakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == breakerClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from.String(), to.String())
	}
}
