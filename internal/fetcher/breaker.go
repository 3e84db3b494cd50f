package fetcher

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the proxy breaker refuses calls.
var ErrCircuitOpen = errors.New("proxy circuit breaker is open")

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker stops calls to the proxy after repeated refusals so a banned key or
// exhausted quota is not hammered for every remaining URL of a job.
// Only errors matching countsAsFailure trip it.
type breaker struct {
	mu              sync.Mutex
	state           BreakerState
	failures        int
	threshold       int
	cooldown        time.Duration
	openedAt        time.Time
	now             func() time.Time
	countsAsFailure func(error) bool
	onStateChange   func(from, to BreakerState)
}

func newBreaker(threshold int, cooldown time.Duration, countsAsFailure func(error) bool) *breaker {
	return &breaker{
		state:           BreakerClosed,
		threshold:       threshold,
		cooldown:        cooldown,
		now:             time.Now,
		countsAsFailure: countsAsFailure,
	}
}

// execute runs fn unless the breaker is open. Half-open lets one probe call
// through; its outcome closes or re-opens the circuit.
func (b *breaker) execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.countsAsFailure(err) {
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.threshold {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
		return
	}

	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.transition(BreakerClosed)
	}
}

func (b *breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
