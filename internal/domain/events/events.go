// Package events resolves the active event for a venue.
//
// Several events may be bound to one venue over time. The active one is always
// the most recently created: latest CreatedAt, ties broken by the higher ID.
// Older events at a reused venue become unreachable; that is intended.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/window"
)

// Store is the event persistence port.
type Store interface {
	// CreateEvent assigns ID and CreatedAt and returns the stored event.
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)
	// ListEvents returns all events, newest first.
	ListEvents(ctx context.Context) ([]model.Event, error)
	// NewestEventForVenue returns model.ErrNotFound (wrapped) when the venue has no event.
	NewestEventForVenue(ctx context.Context, venue string) (model.Event, error)
}

// Newer reports whether a was created after b.
func Newer(a, b model.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Newest picks the active event for venue among evs.
func Newest(evs []model.Event, venue string) (model.Event, bool) {
	var (
		best  model.Event
		found bool
	)
	for _, ev := range evs {
		if ev.Venue != venue {
			continue
		}
		if !found || Newer(ev, best) {
			best, found = ev, true
		}
	}
	return best, found
}

// Resolver finds the active event for a gate.
type Resolver struct {
	store Store
}

// NewResolver wraps store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Active reports found=false when no event is bound to gate and returns an
// error only for storage faults.
func (r *Resolver) Active(ctx context.Context, gate string) (model.Event, bool, error) {
	ev, err := r.store.NewestEventForVenue(ctx, gate)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.Event{}, false, nil
	case err != nil:
		return model.Event{}, false, fmt.Errorf("resolve event for %s: %w", gate, err)
	}
	return ev, true, nil
}

// Draft is an event creation request before defaults are applied.
type Draft struct {
	Title string
	Venue string
	Start time.Time
	End   time.Time
}

// Build applies defaults (start=now, end=start+defaultDuration) and validates.
func Build(d Draft, now time.Time, defaultDuration time.Duration) (model.Event, error) {
	ev := model.Event{
		Title: strings.TrimSpace(d.Title),
		Venue: strings.TrimSpace(d.Venue),
		Start: d.Start,
		End:   d.End,
	}
	if ev.Start.IsZero() {
		ev.Start = now
	}
	if ev.End.IsZero() {
		ev.End = ev.Start.Add(defaultDuration)
	}

	switch {
	case ev.Title == "":
		return model.Event{}, fmt.Errorf("%w: missing title", model.ErrInvalidEvent)
	case ev.Venue == "":
		return model.Event{}, fmt.Errorf("%w: missing venue", model.ErrInvalidEvent)
	case !window.Valid(ev.Start, ev.End):
		return model.Event{}, fmt.Errorf("%w: start must precede end", model.ErrInvalidEvent)
	}
	return ev, nil
}
