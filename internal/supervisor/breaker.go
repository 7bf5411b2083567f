package supervisor

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker is a per-node circuit breaker: closed (healthy), open (too many
// consecutive failures, connections refused until the cooldown elapses),
// half-open (one trial connection allowed to decide whether to close again).
// This is a handful of fields and one timestamp, not a dependency-worthy
// concern — see DESIGN.md for why no third-party breaker library is used.
type breaker struct {
	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time

	failureThreshold int
	cooldown         time.Duration
}

func newBreaker(failureThreshold int, cooldown time.Duration) *breaker {
	return &breaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// allow reports whether a connection attempt may proceed now.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// recordSuccess closes the breaker and resets the failure counter.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.consecutiveFails = 0
}

// recordFailure increments the failure counter, opening the breaker once
// the threshold is reached (or immediately, if the trial half-open attempt
// also failed).
func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen
}
