// Package roster resolves credentials to registered identities and prepares
// roster imports for storage.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/hallpass/internal/domain/model"
	"golang.org/x/text/unicode/norm"
)

// Store is the identity persistence port.
type Store interface {
	// FindIdentity returns model.ErrNotFound (wrapped) for unknown credentials.
	FindIdentity(ctx context.Context, credentialID string) (model.Identity, error)
	SetPresence(ctx context.Context, credentialID string, presence model.Presence) error
	// UpsertIdentities inserts new identities and updates name and venue of
	// existing ones, keeping their presence and photo. It returns the number written.
	UpsertIdentities(ctx context.Context, identities []model.Identity) (int, error)
	CountIdentities(ctx context.Context) (int, error)
}

// Lookup resolves a credential to an identity.
type Lookup struct {
	store Store
}

// NewLookup wraps store.
func NewLookup(store Store) *Lookup {
	return &Lookup{store: store}
}

// Resolve reports found=false for unknown credentials and returns an error
// only for storage faults.
func (l *Lookup) Resolve(ctx context.Context, credentialID string) (model.Identity, bool, error) {
	id, err := l.store.FindIdentity(ctx, credentialID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.Identity{}, false, nil
	case err != nil:
		return model.Identity{}, false, fmt.Errorf("find identity %s: %w", credentialID, err)
	}
	return id, true, nil
}

// NormalizeCredential trims a card UID and upper-cases its ASCII letters so
// readers that report hex in either case resolve to the same identity. Other
// characters are kept as presented.
func NormalizeCredential(credentialID string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}, strings.TrimSpace(credentialID))
}

// NormalizeName composes the name to NFC and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// Prepare normalizes (uid, name) pairs into identities bound to venue.
// New identities start OUT with the placeholder photo; the store decides what
// to keep for identities that already exist.
func Prepare(venue string, pairs []Pair) ([]model.Identity, error) {
	venue = strings.TrimSpace(venue)
	if venue == "" {
		return nil, ErrMissingVenue
	}

	seen := make(map[string]int, len(pairs))
	out := make([]model.Identity, 0, len(pairs))
	for i, p := range pairs {
		uid := NormalizeCredential(p.UID)
		if uid == "" {
			return nil, fmt.Errorf("entry %d: %w", i+1, ErrMissingUID)
		}
		id := model.Identity{
			CredentialID:  uid,
			DisplayName:   NormalizeName(p.Name),
			AssignedVenue: venue,
			Presence:      model.PresenceOut,
			PhotoRef:      model.DefaultPhotoRef,
		}
		// Last occurrence of a duplicated uid wins.
		if at, ok := seen[uid]; ok {
			out[at] = id
			continue
		}
		seen[uid] = len(out)
		out = append(out, id)
	}
	return out, nil
}

// Pair is one raw roster row.
type Pair struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}
