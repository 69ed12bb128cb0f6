package events_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	evs []model.Event
	err error
}

func (f *fakeStore) CreateEvent(_ context.Context, ev model.Event) (model.Event, error) {
	ev.ID = int64(len(f.evs) + 1)
	f.evs = append(f.evs, ev)
	return ev, nil
}

func (f *fakeStore) ListEvents(context.Context) ([]model.Event, error) { return f.evs, nil }

func (f *fakeStore) NewestEventForVenue(_ context.Context, venue string) (model.Event, error) {
	if f.err != nil {
		return model.Event{}, f.err
	}
	ev, ok := events.Newest(f.evs, venue)
	if !ok {
		return model.Event{}, fmt.Errorf("venue %s: %w", venue, model.ErrNotFound)
	}
	return ev, nil
}

func TestNewest(t *testing.T) {
	Convey("Given several events across venues", t, func() {
		t0 := time.UnixMilli(1_700_000_000_000)
		evs := []model.Event{
			{ID: 1, Title: "Calculus Final 101", Venue: "ESP32_HALL_A", CreatedAt: t0},
			{ID: 2, Title: "Flood Relief Center: KL", Venue: "ESP32_TENT_1", CreatedAt: t0.Add(time.Minute)},
			{ID: 3, Title: "Physics Midterm", Venue: "ESP32_HALL_A", CreatedAt: t0.Add(time.Hour)},
		}

		Convey("Then the most recently created event for the venue wins", func() {
			ev, ok := events.Newest(evs, "ESP32_HALL_A")
			So(ok, ShouldBeTrue)
			So(ev.ID, ShouldEqual, 3)
		})

		Convey("Then events at other venues are never selected", func() {
			ev, ok := events.Newest(evs, "ESP32_TENT_1")
			So(ok, ShouldBeTrue)
			So(ev.Venue, ShouldEqual, "ESP32_TENT_1")
		})

		Convey("Then a venue without events yields nothing", func() {
			_, ok := events.Newest(evs, "ESP32_HALL_B")
			So(ok, ShouldBeFalse)
		})

		Convey("Then equal creation times fall back to the higher id", func() {
			tied := []model.Event{
				{ID: 8, Venue: "V", CreatedAt: t0},
				{ID: 9, Venue: "V", CreatedAt: t0},
				{ID: 7, Venue: "V", CreatedAt: t0},
			}
			ev, _ := events.Newest(tied, "V")
			So(ev.ID, ShouldEqual, 9)
			So(events.Newer(tied[1], tied[0]), ShouldBeTrue)
			So(events.Newer(tied[0], tied[1]), ShouldBeFalse)
		})
	})
}

func TestResolver(t *testing.T) {
	Convey("Given a resolver", t, func() {
		ctx := context.Background()
		store := &fakeStore{}
		_, _ = store.CreateEvent(ctx, model.Event{Venue: "ESP32_HALL_A", CreatedAt: time.Now()})
		r := events.NewResolver(store)

		Convey("When the gate has an event", func() {
			ev, found, err := r.Active(ctx, "ESP32_HALL_A")

			Convey("Then it is returned", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeTrue)
				So(ev.Venue, ShouldEqual, "ESP32_HALL_A")
			})
		})

		Convey("When the gate has no event", func() {
			_, found, err := r.Active(ctx, "NOWHERE")

			Convey("Then found is false without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the store fails", func() {
			store.err = errors.New("database is locked")
			_, _, err := r.Active(ctx, "ESP32_HALL_A")

			Convey("Then the fault is propagated", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, model.ErrNotFound), ShouldBeFalse)
			})
		})
	})
}

func TestBuild(t *testing.T) {
	Convey("Given an event draft", t, func() {
		now := time.UnixMilli(1_700_000_000_000)

		Convey("When no window is supplied", func() {
			ev, err := events.Build(events.Draft{Title: " Calculus Final 101 ", Venue: "ESP32_HALL_A"}, now, 24*time.Hour)

			Convey("Then it runs from now for the default duration", func() {
				So(err, ShouldBeNil)
				So(ev.Title, ShouldEqual, "Calculus Final 101")
				So(ev.Start, ShouldEqual, now)
				So(ev.End, ShouldEqual, now.Add(24*time.Hour))
			})
		})

		Convey("When only a start is supplied", func() {
			start := now.Add(time.Hour)
			ev, err := events.Build(events.Draft{Title: "T", Venue: "V", Start: start}, now, 3*time.Hour)

			Convey("Then the end follows the start", func() {
				So(err, ShouldBeNil)
				So(ev.End, ShouldEqual, start.Add(3*time.Hour))
			})
		})

		Convey("When the draft is invalid", func() {
			_, noTitle := events.Build(events.Draft{Venue: "V"}, now, time.Hour)
			_, noVenue := events.Build(events.Draft{Title: "T"}, now, time.Hour)
			_, inverted := events.Build(events.Draft{Title: "T", Venue: "V", Start: now, End: now.Add(-time.Second)}, now, time.Hour)

			Convey("Then ErrInvalidEvent is returned", func() {
				So(errors.Is(noTitle, model.ErrInvalidEvent), ShouldBeTrue)
				So(errors.Is(noVenue, model.ErrInvalidEvent), ShouldBeTrue)
				So(errors.Is(inverted, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})
	})
}
