package registrar

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the scheduler endpoint is
// considered down.
var ErrCircuitOpen = errors.New("scheduler circuit open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a circuit breaker for the single scheduler endpoint. After
// threshold consecutive failures it opens for the cooldown period; the
// first call after the cooldown is a half-open probe.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewBreaker creates a breaker. A threshold of zero effectively disables
// opening (callers should pass nil to the registrar instead).
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.clock().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// A probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure and opens the circuit at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.threshold > 0 && b.consecutiveFailures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.clock()
	}
}
