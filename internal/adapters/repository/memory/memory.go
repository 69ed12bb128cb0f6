// Package memory is an in-process implementation of the roster, event and
// attendance ports. Data lives for the lifetime of the Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/model"
)

// Store keeps identities, events and the attendance log in memory.
type Store struct {
	mu sync.RWMutex

	identities  map[string]model.Identity
	events      []model.Event
	nextEventID int64

	entries      []model.LogEntry
	byGate       map[string][]int
	latestByGate map[string]int

	clock func() time.Time
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the clock used for event creation times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		identities:   make(map[string]model.Identity),
		byGate:       make(map[string][]int),
		latestByGate: make(map[string]int),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op kept for parity with durable stores.
func (s *Store) Close() error { return nil }

// Roster.

func (s *Store) FindIdentity(_ context.Context, credentialID string) (model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[credentialID]
	if !ok {
		return model.Identity{}, fmt.Errorf("identity %s: %w", credentialID, model.ErrNotFound)
	}
	return id, nil
}

func (s *Store) SetPresence(_ context.Context, credentialID string, presence model.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPresenceLocked(credentialID, presence)
}

func (s *Store) setPresenceLocked(credentialID string, presence model.Presence) error {
	id, ok := s.identities[credentialID]
	if !ok {
		return fmt.Errorf("identity %s: %w", credentialID, model.ErrNotFound)
	}
	id.Presence = presence
	s.identities[credentialID] = id
	return nil
}

func (s *Store) UpsertIdentities(_ context.Context, ids []model.Identity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, in := range ids {
		if cur, ok := s.identities[in.CredentialID]; ok {
			cur.DisplayName = in.DisplayName
			cur.AssignedVenue = in.AssignedVenue
			s.identities[in.CredentialID] = cur
			continue
		}
		if in.Presence == "" {
			in.Presence = model.PresenceOut
		}
		if in.PhotoRef == "" {
			in.PhotoRef = model.DefaultPhotoRef
		}
		s.identities[in.CredentialID] = in
	}
	return len(ids), nil
}

func (s *Store) CountIdentities(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// Events.

func (s *Store) CreateEvent(_ context.Context, ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEventID++
	ev.ID = s.nextEventID
	ev.CreatedAt = time.UnixMilli(s.clock().UnixMilli())
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) ListEvents(context.Context) ([]model.Event, error) {
	s.mu.RLock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return events.Newer(out[i], out[j]) })
	return out, nil
}

func (s *Store) NewestEventForVenue(_ context.Context, venue string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := events.Newest(s.events, venue)
	if !ok {
		return model.Event{}, fmt.Errorf("event for venue %s: %w", venue, model.ErrNotFound)
	}
	return ev, nil
}

// Attendance log.

func (s *Store) Append(_ context.Context, entry model.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entry)
	return nil
}

func (s *Store) AppendAdmit(_ context.Context, entry model.LogEntry, presence model.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.setPresenceLocked(entry.CredentialID, presence); err != nil {
		return err
	}
	s.appendLocked(entry)
	return nil
}

func (s *Store) appendLocked(entry model.LogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	idx := len(s.entries)
	s.entries = append(s.entries, entry)
	s.byGate[entry.Gate] = append(s.byGate[entry.Gate], idx)

	// Later appends win timestamp ties.
	if cur, ok := s.latestByGate[entry.Gate]; !ok || !entry.Timestamp.Before(s.entries[cur].Timestamp) {
		s.latestByGate[entry.Gate] = idx
	}
}

func (s *Store) LatestForGate(_ context.Context, gate string) (model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.latestByGate[gate]
	if !ok {
		return model.LogEntry{}, fmt.Errorf("latest for gate %s: %w", gate, model.ErrNotFound)
	}
	return s.entries[idx], nil
}

func (s *Store) RecentForGate(_ context.Context, gate string, limit int) ([]model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := make([]int, len(s.byGate[gate]))
	copy(idxs, s.byGate[gate])
	sort.SliceStable(idxs, func(i, j int) bool {
		a, b := s.entries[idxs[i]], s.entries[idxs[j]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return idxs[i] > idxs[j]
	})
	if limit > 0 && len(idxs) > limit {
		idxs = idxs[:limit]
	}
	out := make([]model.LogEntry, len(idxs))
	for i, idx := range idxs {
		out[i] = s.entries[idx]
	}
	return out, nil
}

func (s *Store) CountEntries(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}
