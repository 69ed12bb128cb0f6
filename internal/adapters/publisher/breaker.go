package publisher

import (
	"sync"
	"time"
)

// breaker stops hammering a sink that keeps failing. After threshold
// consecutive failures it rejects calls until cooldown has passed, then lets
// one through.
type breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	clock     func() time.Time

	failures  int
	openUntil time.Time
}

func newBreaker(threshold int, cooldown time.Duration, clock func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	return &breaker{threshold: threshold, cooldown: cooldown, clock: clock}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures < b.threshold || !b.clock().Before(b.openUntil)
}

func (b *breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.clock().Add(b.cooldown)
	}
}
