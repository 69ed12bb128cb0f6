package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/internal/adapters/repository"
	"github.com/okian/hallpass/internal/adapters/repository/repotest"
	"github.com/okian/hallpass/internal/adapters/repository/sqlite"
	"github.com/okian/hallpass/internal/domain/model"
)

func TestSQLiteStoreContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Store {
		s, err := sqlite.Open(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	})
}

func TestSQLiteStoreDurability(t *testing.T) {
	Convey("Given a store on disk", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "hallpass.db")

		s, err := sqlite.Open(ctx, path)
		So(err, ShouldBeNil)

		_, err = s.UpsertIdentities(ctx, []model.Identity{
			{CredentialID: "A1B2C3D4", DisplayName: "Ali bin Abu", AssignedVenue: "ESP32_HALL_A"},
		})
		So(err, ShouldBeNil)
		So(s.AppendAdmit(ctx, model.LogEntry{
			ID:           "admit-1",
			CredentialID: "A1B2C3D4",
			Outcome:      model.OutcomeVerified,
			Reason:       model.ReasonGranted,
			TapType:      model.TapEntry,
			Gate:         "ESP32_HALL_A",
			Timestamp:    time.UnixMilli(1_760_000_000_000),
		}, model.PresenceIn), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			s, err := sqlite.Open(ctx, path)
			So(err, ShouldBeNil)
			defer func() { _ = s.Close() }()

			Convey("Then migrations are a no-op and data survives", func() {
				id, err := s.FindIdentity(ctx, "A1B2C3D4")
				So(err, ShouldBeNil)
				So(id.Presence, ShouldEqual, model.PresenceIn)

				latest, err := s.LatestForGate(ctx, "ESP32_HALL_A")
				So(err, ShouldBeNil)
				So(latest.ID, ShouldEqual, "admit-1")
			})
		})

		Convey("When writing after close", func() {
			err := s.Append(ctx, model.LogEntry{
				CredentialID: "A1B2C3D4",
				Outcome:      model.OutcomeDenied,
				Reason:       model.ReasonWrongHall,
				TapType:      model.TapDenied,
				Gate:         "ESP32_HALL_A",
				Timestamp:    time.Now(),
			})

			Convey("Then the store refuses", func() {
				So(errors.Is(err, sqlite.ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestSQLiteEventBounds(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		s, err := sqlite.Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		Convey("When an event ends before it starts", func() {
			start := time.UnixMilli(1_760_000_000_000)
			_, err := s.CreateEvent(ctx, model.Event{Title: "bad", Venue: "ESP32_HALL_A", Start: start, End: start.Add(-time.Hour)})

			Convey("Then the schema rejects it", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSQLiteAppendUnderCancellation(t *testing.T) {
	Convey("Given a store on disk", t, func() {
		ctx := context.Background()
		s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "hallpass.db"))
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		Convey("When appends race their callers' deadlines", func() {
			mismatches := 0
			for i := 0; i < 300; i++ {
				before, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)

				actx, cancel := context.WithTimeout(ctx, time.Duration(i%3)*time.Millisecond)
				if i%5 == 0 {
					cancel()
				}
				appendErr := s.Append(actx, model.LogEntry{
					ID:           fmt.Sprintf("entry-%d", i),
					CredentialID: "A1B2C3D4",
					Outcome:      model.OutcomeDenied,
					Reason:       model.ReasonDoubleScan,
					TapType:      model.TapDenied,
					Gate:         "ESP32_HALL_A",
					Timestamp:    time.UnixMilli(1_760_000_000_000 + int64(i)),
				})
				cancel()

				after, err := s.CountEntries(ctx)
				So(err, ShouldBeNil)
				if (appendErr == nil) != (after == before+1) || (appendErr != nil && after != before) {
					mismatches++
				}
			}

			Convey("Then every reported result matches what was stored", func() {
				So(mismatches, ShouldEqual, 0)
			})
		})

		Convey("When an admit is accepted and its caller goes away", func() {
			_, err := s.UpsertIdentities(ctx, []model.Identity{
				{CredentialID: "E5F6G7H8", DisplayName: "Siti Sarah", AssignedVenue: "ESP32_HALL_A"},
			})
			So(err, ShouldBeNil)

			actx, cancel := context.WithCancel(ctx)
			errCh := make(chan error, 1)
			go func() {
				errCh <- s.AppendAdmit(actx, model.LogEntry{
					ID:           "admit-late",
					CredentialID: "E5F6G7H8",
					Outcome:      model.OutcomeVerified,
					Reason:       model.ReasonGranted,
					TapType:      model.TapEntry,
					Gate:         "ESP32_HALL_A",
					Timestamp:    time.UnixMilli(1_760_000_000_000),
				}, model.PresenceIn)
			}()
			cancel()
			appendErr := <-errCh

			Convey("Then presence agrees with the reported result", func() {
				id, err := s.FindIdentity(ctx, "E5F6G7H8")
				So(err, ShouldBeNil)
				if appendErr == nil {
					So(id.Presence, ShouldEqual, model.PresenceIn)
				} else {
					So(id.Presence, ShouldEqual, model.PresenceOut)
				}
			})
		})
	})
}
