package httpclient

import (
	"errors"
	"sync"
	"time"
)

// breakerState is the current mode of an upstream breaker.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// ErrUpstreamUnavailable is returned without touching the network while the
// breaker for an upstream is open.
var ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")

// breaker trips after a number of consecutive failures and re-closes after a
// number of consecutive successes in half-open. One breaker guards one
// upstream host, so a flapping SPARQL endpoint cannot block Commons lookups.
type breaker struct {
	mu               sync.Mutex
	state            breakerState
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	failures         int
	successes        int
	openedAt         time.Time
}

func newBreaker(failureThreshold, successThreshold int, cooldown time.Duration) *breaker {
	return &breaker{
		state:            stateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
	}
}

// allow reports whether a request may go out right now.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen && time.Since(b.openedAt) > b.cooldown {
		b.state = stateHalfOpen
		b.successes = 0
	}
	return b.state != stateOpen
}

// record feeds the outcome of a request back into the state machine.
func (b *breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.successes = 0
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.failureThreshold {
			b.state = stateOpen
			b.openedAt = time.Now()
			b.failures = 0
		}
		return
	}

	b.failures = 0
	if b.state == stateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = stateClosed
		}
	}
}
