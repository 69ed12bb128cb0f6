// Package cooldown tracks when each credential was last admitted so the same
// card cannot be admitted twice within a fixed window.
package cooldown

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindow is the re-admission lockout after a successful admit.
const DefaultWindow = 15 * time.Second

// Tracker records the last admit time per credential.
//
// Entries are written only on admit. Denied taps never arm the tracker.
type Tracker interface {
	// Blocked reports whether credentialID was admitted less than Window() before now.
	Blocked(ctx context.Context, credentialID string, now time.Time) bool

	// Arm records now as the credential's last admit time.
	Arm(ctx context.Context, credentialID string, now time.Time)

	// Prune drops entries whose window has elapsed at now and returns how many were removed.
	Prune(ctx context.Context, now time.Time) int

	Size() int64
	Window() time.Duration
}

type entry struct {
	credentialID string
	armedAt      time.Time
}

// inMemoryTracker keeps entries in arm order: front is newest, back is oldest.
// When bounded (maxSize > 0) and full, expired entries are dropped first; a
// live entry is evicted only when none has expired.
type inMemoryTracker struct {
	mu      sync.Mutex
	window  time.Duration
	maxSize int
	byID    map[string]*list.Element
	order   *list.List
	size    atomic.Int64
}

// NewInMemoryTracker creates a tracker with configuration options.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		window:  DefaultWindow,
		maxSize: 100_000,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.byID = make(map[string]*list.Element)
	t.order = list.New()
	return t
}

func (t *inMemoryTracker) Blocked(_ context.Context, credentialID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.byID[credentialID]
	if !ok {
		return false
	}
	last := el.Value.(*entry).armedAt
	return now.Sub(last) < t.window
}

func (t *inMemoryTracker) Arm(_ context.Context, credentialID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.byID[credentialID]; ok {
		el.Value.(*entry).armedAt = now
		t.order.MoveToFront(el)
		return
	}

	if t.maxSize > 0 && len(t.byID) >= t.maxSize && t.pruneLocked(now) == 0 {
		t.evictOldest()
	}
	t.byID[credentialID] = t.order.PushFront(&entry{credentialID: credentialID, armedAt: now})
	t.size.Add(1)
}

func (t *inMemoryTracker) Prune(_ context.Context, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pruneLocked(now)
}

// pruneLocked must be called with t.mu held.
func (t *inMemoryTracker) pruneLocked(now time.Time) int {
	removed := 0
	for el := t.order.Back(); el != nil; el = t.order.Back() {
		if now.Sub(el.Value.(*entry).armedAt) < t.window {
			break
		}
		t.remove(el)
		removed++
	}
	return removed
}

// evictOldest must be called with t.mu held.
func (t *inMemoryTracker) evictOldest() {
	if el := t.order.Back(); el != nil {
		t.remove(el)
	}
}

// remove must be called with t.mu held.
func (t *inMemoryTracker) remove(el *list.Element) {
	e := t.order.Remove(el).(*entry)
	delete(t.byID, e.credentialID)
	t.size.Add(-1)
}

func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}

func (t *inMemoryTracker) Window() time.Duration {
	return t.window
}
