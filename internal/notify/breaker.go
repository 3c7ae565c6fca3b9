package notify

import (
	"sync"
	"time"
)

// breakerState is the state of the webhook circuit.
type breakerState int

const (
	closed   breakerState = iota // deliveries allowed
	open                         // deliveries skipped
	halfOpen                     // one probe allowed
)

func (s breakerState) String() string {
	switch s {
	case closed:
		return "closed"
	case open:
		return "open"
	case halfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker stops hammering a webhook that keeps failing. After threshold
// consecutive failures it opens for cooldown, then lets a single probe
// through.
type breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	now         func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a delivery should be attempted.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case open:
		if b.now().Sub(b.lastFailure) > b.cooldown {
			b.state = halfOpen
			return true
		}
		return false
	case halfOpen:
		// A probe is already in flight.
		return false
	default:
		return true
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = closed
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.state == halfOpen || b.failures >= b.threshold {
		b.state = open
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
