// Package attendance defines the append-only attendance log and the
// latest-status feed read by gate viewers.
package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/logger"
	"github.com/okian/hallpass/pkg/metrics"
)

// DefaultRecentLimit caps history reads when the caller gives no limit.
const DefaultRecentLimit = 20

// MaxRecentLimit is the largest history page served.
const MaxRecentLimit = 200

// Log is the attendance persistence port. Entries are never updated or deleted.
type Log interface {
	// Append stores one entry. Errors must reach the caller.
	Append(ctx context.Context, entry model.LogEntry) error
	// AppendAdmit stores an admit entry and sets the identity's presence in one
	// transaction: either both happen or neither does.
	AppendAdmit(ctx context.Context, entry model.LogEntry, presence model.Presence) error
	// LatestForGate returns the newest entry for gate, or model.ErrNotFound (wrapped).
	LatestForGate(ctx context.Context, gate string) (model.LogEntry, error)
	// RecentForGate returns up to limit entries for gate, newest first.
	RecentForGate(ctx context.Context, gate string, limit int) ([]model.LogEntry, error)
	CountEntries(ctx context.Context) (int64, error)
}

// IdentityFinder is the part of the roster the feed joins against.
type IdentityFinder interface {
	FindIdentity(ctx context.Context, credentialID string) (model.Identity, error)
}

// Feed serves the newest decision per gate, joined with the identity's
// display data as it is at read time.
type Feed struct {
	log    Log
	roster IdentityFinder
	logger logger.Logger
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithLogger sets a custom logger for the feed.
func WithLogger(l logger.Logger) FeedOption {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFeed builds a feed over log and roster.
func NewFeed(log Log, roster IdentityFinder, opts ...FeedOption) *Feed {
	f := &Feed{log: log, roster: roster}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.Get().Named("feed")
	}
	return f
}

// Latest returns the newest entry for gate. found is false when the gate has
// no entries yet.
func (f *Feed) Latest(ctx context.Context, gate string) (model.Status, bool, error) {
	entry, err := f.log.LatestForGate(ctx, gate)
	switch {
	case errors.Is(err, model.ErrNotFound):
		metrics.RecordLatestQuery("miss")
		return model.Status{}, false, nil
	case err != nil:
		metrics.RecordLatestQuery("error")
		return model.Status{}, false, fmt.Errorf("latest for gate %s: %w", gate, err)
	}
	metrics.RecordLatestQuery("hit")
	return f.enrich(ctx, entry), true, nil
}

// Recent returns up to limit enriched entries for gate, newest first.
func (f *Feed) Recent(ctx context.Context, gate string, limit int) ([]model.Status, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	entries, err := f.log.RecentForGate(ctx, gate, limit)
	if err != nil {
		return nil, fmt.Errorf("recent for gate %s: %w", gate, err)
	}

	// One lookup per distinct credential.
	cache := make(map[string]model.Status, len(entries))
	out := make([]model.Status, 0, len(entries))
	for _, e := range entries {
		s, ok := cache[e.CredentialID]
		if !ok {
			s = f.enrich(ctx, e)
			cache[e.CredentialID] = s
		}
		s.LogEntry = e
		out = append(out, s)
	}
	return out, nil
}

// enrich is best effort: unknown credentials and lookup faults leave the
// display fields empty.
func (f *Feed) enrich(ctx context.Context, e model.LogEntry) model.Status {
	s := model.Status{LogEntry: e}
	if e.CredentialID == "" {
		return s
	}
	id, err := f.roster.FindIdentity(ctx, e.CredentialID)
	switch {
	case errors.Is(err, model.ErrNotFound):
	case err != nil:
		f.logger.Warn(ctx, "identity join failed", logger.String("uid", e.CredentialID), logger.Error(err))
	default:
		s.DisplayName = id.DisplayName
		s.PhotoRef = id.PhotoRef
	}
	return s
}
