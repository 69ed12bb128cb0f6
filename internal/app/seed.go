package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/logger"
)

type seedEvent struct {
	title    string
	venue    string
	duration time.Duration
}

var seedEvents = []seedEvent{ //nolint:gochecknoglobals // demo fixture
	{title: "Calculus Final 101", venue: "ESP32_HALL_A", duration: 3 * time.Hour},
	{title: "Flood Relief Center: KL", venue: "ESP32_TENT_1", duration: 24 * time.Hour},
}

var seedIdentities = []model.Identity{ //nolint:gochecknoglobals // demo fixture
	{
		CredentialID:  "A1B2C3D4",
		DisplayName:   "Ali bin Abu",
		AssignedVenue: "ESP32_HALL_A",
		Presence:      model.PresenceOut,
		PhotoRef:      "https://randomuser.me/api/portraits/men/32.jpg",
	},
	{
		CredentialID:  "E5F6G7H8",
		DisplayName:   "Siti Sarah",
		AssignedVenue: "ESP32_HALL_A",
		Presence:      model.PresenceOut,
		PhotoRef:      "https://randomuser.me/api/portraits/women/44.jpg",
	},
	{
		CredentialID:  "11223344",
		DisplayName:   "John Doe (Victim)",
		AssignedVenue: "ESP32_TENT_1",
		Presence:      model.PresenceOut,
		PhotoRef:      "https://randomuser.me/api/portraits/men/11.jpg",
	},
}

// seedDemo loads the demo events and roster into an empty store. A store that
// already has identities is left alone.
func (s *Service) seedDemo(ctx context.Context) error {
	n, err := s.store.CountIdentities(ctx)
	if err != nil {
		return fmt.Errorf("count identities: %w", err)
	}
	if n > 0 {
		s.logger.Info(ctx, "store not empty, skipping seed", logger.Int("identities", n))
		return nil
	}

	now := time.UnixMilli(s.clock().UnixMilli())
	for _, se := range seedEvents {
		if _, err := s.store.CreateEvent(ctx, model.Event{
			Title: se.title,
			Venue: se.venue,
			Start: now,
			End:   now.Add(se.duration),
		}); err != nil {
			return fmt.Errorf("seed event %q: %w", se.title, err)
		}
	}

	if _, err := s.store.UpsertIdentities(ctx, seedIdentities); err != nil {
		return fmt.Errorf("seed identities: %w", err)
	}

	s.logger.Info(ctx, "seeded demo data",
		logger.Int("events", len(seedEvents)),
		logger.Int("identities", len(seedIdentities)),
	)
	return nil
}
