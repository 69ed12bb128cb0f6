// Package repotest holds the behaviour every repository.Store must share.
// Driver packages run it from their own tests.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/internal/adapters/repository"
	"github.com/okian/hallpass/internal/domain/model"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) repository.Store

var base = time.UnixMilli(1_760_000_000_000)

func entry(id, uid, gate string, outcome model.Outcome, ts time.Time) model.LogEntry {
	tap := model.TapDenied
	reason := model.ReasonWrongHall
	if outcome == model.OutcomeVerified {
		tap = model.TapEntry
		reason = model.ReasonGranted
	}
	return model.LogEntry{
		ID:           id,
		CredentialID: uid,
		Outcome:      outcome,
		Reason:       reason,
		TapType:      tap,
		Gate:         gate,
		Timestamp:    ts,
	}
}

// Run exercises the roster, event and attendance contracts against stores
// built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := newStore(t)
		Reset(func() { _ = s.Close() })

		Convey("When looking up an unknown identity", func() {
			_, err := s.FindIdentity(ctx, "NOPE")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When upserting identities", func() {
			n, err := s.UpsertIdentities(ctx, []model.Identity{
				{CredentialID: "A1B2C3D4", DisplayName: "Ali bin Abu", AssignedVenue: "ESP32_HALL_A"},
				{CredentialID: "E5F6G7H8", DisplayName: "Siti Sarah", AssignedVenue: "ESP32_HALL_A", Presence: model.PresenceIn},
			})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			Convey("Then new identities default to OUT with the default photo", func() {
				id, err := s.FindIdentity(ctx, "A1B2C3D4")
				So(err, ShouldBeNil)
				So(id.DisplayName, ShouldEqual, "Ali bin Abu")
				So(id.AssignedVenue, ShouldEqual, "ESP32_HALL_A")
				So(id.Presence, ShouldEqual, model.PresenceOut)
				So(id.PhotoRef, ShouldEqual, model.DefaultPhotoRef)

				count, err := s.CountIdentities(ctx)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 2)
			})

			Convey("Then re-upserting updates name and venue but keeps presence", func() {
				So(s.SetPresence(ctx, "A1B2C3D4", model.PresenceIn), ShouldBeNil)
				_, err := s.UpsertIdentities(ctx, []model.Identity{
					{CredentialID: "A1B2C3D4", DisplayName: "Ali", AssignedVenue: "ESP32_TENT_1"},
				})
				So(err, ShouldBeNil)

				id, err := s.FindIdentity(ctx, "A1B2C3D4")
				So(err, ShouldBeNil)
				So(id.DisplayName, ShouldEqual, "Ali")
				So(id.AssignedVenue, ShouldEqual, "ESP32_TENT_1")
				So(id.Presence, ShouldEqual, model.PresenceIn)

				count, err := s.CountIdentities(ctx)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 2)
			})

			Convey("Then setting presence on an unknown identity fails", func() {
				err := s.SetPresence(ctx, "NOPE", model.PresenceIn)
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When creating events", func() {
			first, err := s.CreateEvent(ctx, model.Event{
				Title: "Calculus Final 101", Venue: "ESP32_HALL_A",
				Start: base, End: base.Add(3 * time.Hour),
			})
			So(err, ShouldBeNil)
			second, err := s.CreateEvent(ctx, model.Event{
				Title: "Resit", Venue: "ESP32_HALL_A",
				Start: base.Add(time.Hour), End: base.Add(2 * time.Hour),
			})
			So(err, ShouldBeNil)
			other, err := s.CreateEvent(ctx, model.Event{
				Title: "Flood Relief Center: KL", Venue: "ESP32_TENT_1",
				Start: base, End: base.Add(24 * time.Hour),
			})
			So(err, ShouldBeNil)

			Convey("Then each gets a distinct increasing id and a creation time", func() {
				So(first.ID, ShouldBeGreaterThan, 0)
				So(second.ID, ShouldBeGreaterThan, first.ID)
				So(other.ID, ShouldBeGreaterThan, second.ID)
				So(first.CreatedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then the newest event per venue wins", func() {
				ev, err := s.NewestEventForVenue(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(ev.ID, ShouldEqual, second.ID)
				So(ev.Title, ShouldEqual, "Resit")
				So(ev.Start.Equal(base.Add(time.Hour)), ShouldBeTrue)
				So(ev.End.Equal(base.Add(2*time.Hour)), ShouldBeTrue)

				_, err = s.NewestEventForVenue(ctx, "ESP32_NOWHERE")
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then listing returns newest first", func() {
				evs, err := s.ListEvents(ctx)
				So(err, ShouldBeNil)
				So(len(evs), ShouldEqual, 3)
				So(evs[0].ID, ShouldEqual, other.ID)
				So(evs[2].ID, ShouldEqual, first.ID)
			})
		})

		Convey("When the log is empty", func() {
			_, err := s.LatestForGate(ctx, "ESP32_HALL_A")

			Convey("Then latest reports not found and history is empty", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

				recent, err := s.RecentForGate(ctx, "ESP32_HALL_A", 10)
				So(err, ShouldBeNil)
				So(recent, ShouldBeEmpty)

				n, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When appending entries on two gates", func() {
			So(s.Append(ctx, entry("e1", "A1B2C3D4", "ESP32_HALL_A", model.OutcomeDenied, base)), ShouldBeNil)
			So(s.Append(ctx, entry("e2", "E5F6G7H8", "ESP32_HALL_A", model.OutcomeDenied, base.Add(time.Second))), ShouldBeNil)
			So(s.Append(ctx, entry("e3", "A1B2C3D4", "ESP32_TENT_1", model.OutcomeDenied, base.Add(2*time.Second))), ShouldBeNil)

			Convey("Then latest is per gate and by timestamp", func() {
				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "e2")
				So(latest.CredentialID, ShouldEqual, "E5F6G7H8")
				So(latest.Outcome, ShouldEqual, model.OutcomeDenied)
				So(latest.Reason, ShouldEqual, model.ReasonWrongHall)
				So(latest.TapType, ShouldEqual, model.TapDenied)
				So(latest.Timestamp.Equal(base.Add(time.Second)), ShouldBeTrue)

				tent, err := s.LatestForGate(ctx, "ESP32_TENT_1")
				So(err, ShouldBeNil)
				So(tent.ID, ShouldEqual, "e3")
			})

			Convey("Then an equal timestamp appended later becomes latest", func() {
				So(s.Append(ctx, entry("e4", "A1B2C3D4", "ESP32_HALL_A", model.OutcomeDenied, base.Add(time.Second))), ShouldBeNil)
				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "e4")
			})

			Convey("Then an older timestamp does not displace latest", func() {
				So(s.Append(ctx, entry("e5", "A1B2C3D4", "ESP32_HALL_A", model.OutcomeDenied, base.Add(-time.Minute))), ShouldBeNil)
				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "e2")
			})

			Convey("Then history is newest first and honours the limit", func() {
				recent, err := s.RecentForGate(ctx, "ESP32_HALL_A", 10)
				So(err, ShouldBeNil)
				So(len(recent), ShouldEqual, 2)
				So(recent[0].ID, ShouldEqual, "e2")
				So(recent[1].ID, ShouldEqual, "e1")

				one, err := s.RecentForGate(ctx, "ESP32_HALL_A", 1)
				So(err, ShouldBeNil)
				So(len(one), ShouldEqual, 1)
				So(one[0].ID, ShouldEqual, "e2")

				n, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
			})
		})

		Convey("When appending an entry without an id", func() {
			So(s.Append(ctx, entry("", "A1B2C3D4", "ESP32_HALL_A", model.OutcomeDenied, base)), ShouldBeNil)

			Convey("Then the store assigns one", func() {
				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldNotBeEmpty)
			})
		})

		Convey("When admitting a registered identity", func() {
			_, err := s.UpsertIdentities(ctx, []model.Identity{
				{CredentialID: "A1B2C3D4", DisplayName: "Ali bin Abu", AssignedVenue: "ESP32_HALL_A"},
			})
			So(err, ShouldBeNil)

			e := entry("admit-1", "A1B2C3D4", "ESP32_HALL_A", model.OutcomeVerified, base)
			e.SnapshotRef = "/live_scans/A1B2C3D4_1760000000000.jpg"
			So(s.AppendAdmit(ctx, e, model.PresenceIn), ShouldBeNil)

			Convey("Then presence and the entry land together", func() {
				id, err := s.FindIdentity(ctx, "A1B2C3D4")
				So(err, ShouldBeNil)
				So(id.Presence, ShouldEqual, model.PresenceIn)

				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "admit-1")
				So(latest.TapType, ShouldEqual, model.TapEntry)
				So(latest.SnapshotRef, ShouldEqual, e.SnapshotRef)
			})
		})

		Convey("When admitting an unknown identity", func() {
			err := s.AppendAdmit(ctx, entry("admit-x", "NOPE", "ESP32_HALL_A", model.OutcomeVerified, base), model.PresenceIn)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				n, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When many goroutines append at once", func() {
			const writers, each = 8, 25
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < each; i++ {
						id := fmt.Sprintf("c-%d-%d", w, i)
						_ = s.Append(ctx, entry(id, "A1B2C3D4", "ESP32_HALL_A", model.OutcomeDenied, base.Add(time.Duration(i)*time.Millisecond)))
					}
				}(w)
			}
			wg.Wait()

			Convey("Then every entry is stored", func() {
				n, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, writers*each)
			})
		})
	})
}
