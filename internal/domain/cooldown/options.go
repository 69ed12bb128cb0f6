package cooldown

import "time"

// Option applies a configuration option to the in-memory tracker.
type Option func(*inMemoryTracker)

// WithWindow sets the re-admission lockout. Non-positive values are ignored.
func WithWindow(window time.Duration) Option {
	return func(t *inMemoryTracker) {
		if window > 0 {
			t.window = window
		}
	}
}

// WithMaxSize bounds the number of tracked credentials.
// If maxSize > 0: the oldest entry is evicted when full.
// If maxSize <= 0: unbounded; rely on Prune to reclaim memory.
func WithMaxSize(maxSize int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = maxSize
	}
}
