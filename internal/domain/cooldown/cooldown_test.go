package cooldown_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	cooldown "github.com/okian/hallpass/internal/domain/cooldown"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryTracker(t *testing.T) {
	Convey("Given a new in-memory tracker", t, func() {
		ctx := context.Background()
		t0 := time.UnixMilli(1_700_000_000_000)

		Convey("When created with default options", func() {
			tr := cooldown.NewInMemoryTracker()

			Convey("Then it should be empty with the default window", func() {
				So(tr.Size(), ShouldEqual, 0)
				So(tr.Window(), ShouldEqual, 15*time.Second)
			})
		})

		Convey("When a credential has never been admitted", func() {
			tr := cooldown.NewInMemoryTracker()

			Convey("Then it is not blocked", func() {
				So(tr.Blocked(ctx, "A1B2C3D4", t0), ShouldBeFalse)
			})
		})

		Convey("When a credential was admitted at T", func() {
			tr := cooldown.NewInMemoryTracker()
			tr.Arm(ctx, "A1B2C3D4", t0)

			Convey("Then it is blocked one millisecond before the window elapses", func() {
				So(tr.Blocked(ctx, "A1B2C3D4", t0.Add(15*time.Second-time.Millisecond)), ShouldBeTrue)
			})

			Convey("And it is released exactly at T+15s", func() {
				So(tr.Blocked(ctx, "A1B2C3D4", t0.Add(15*time.Second)), ShouldBeFalse)
			})

			Convey("And other credentials are unaffected", func() {
				So(tr.Blocked(ctx, "E5F6G7H8", t0.Add(time.Second)), ShouldBeFalse)
			})

			Convey("And re-arming moves the window forward without growing the tracker", func() {
				tr.Arm(ctx, "A1B2C3D4", t0.Add(20*time.Second))
				So(tr.Size(), ShouldEqual, 1)
				So(tr.Blocked(ctx, "A1B2C3D4", t0.Add(30*time.Second)), ShouldBeTrue)
			})
		})

		Convey("When a custom window is configured", func() {
			tr := cooldown.NewInMemoryTracker(cooldown.WithWindow(2 * time.Second))
			tr.Arm(ctx, "card", t0)

			Convey("Then it applies instead of the default", func() {
				So(tr.Window(), ShouldEqual, 2*time.Second)
				So(tr.Blocked(ctx, "card", t0.Add(1999*time.Millisecond)), ShouldBeTrue)
				So(tr.Blocked(ctx, "card", t0.Add(2*time.Second)), ShouldBeFalse)
			})
		})

		Convey("When a non-positive window is configured", func() {
			tr := cooldown.NewInMemoryTracker(cooldown.WithWindow(0))

			Convey("Then the default is kept", func() {
				So(tr.Window(), ShouldEqual, cooldown.DefaultWindow)
			})
		})

		Convey("When the tracker is bounded", func() {
			tr := cooldown.NewInMemoryTracker(cooldown.WithMaxSize(2))
			tr.Arm(ctx, "first", t0)
			tr.Arm(ctx, "second", t0.Add(time.Millisecond))
			tr.Arm(ctx, "third", t0.Add(2*time.Millisecond))

			Convey("Then the oldest arm is evicted", func() {
				So(tr.Size(), ShouldEqual, 2)
				So(tr.Blocked(ctx, "first", t0.Add(time.Second)), ShouldBeFalse)
				So(tr.Blocked(ctx, "second", t0.Add(time.Second)), ShouldBeTrue)
				So(tr.Blocked(ctx, "third", t0.Add(time.Second)), ShouldBeTrue)
			})
		})

		Convey("When a bounded tracker is full and the oldest arm has expired", func() {
			tr := cooldown.NewInMemoryTracker(cooldown.WithMaxSize(2))
			tr.Arm(ctx, "stale", t0)
			tr.Arm(ctx, "live", t0.Add(10*time.Second))
			tr.Arm(ctx, "new", t0.Add(16*time.Second))

			Convey("Then only the expired arm makes room", func() {
				So(tr.Size(), ShouldEqual, 2)
				So(tr.Blocked(ctx, "live", t0.Add(16*time.Second)), ShouldBeTrue)
				So(tr.Blocked(ctx, "new", t0.Add(16*time.Second)), ShouldBeTrue)
			})
		})

		Convey("When pruning", func() {
			tr := cooldown.NewInMemoryTracker()
			tr.Arm(ctx, "old", t0)
			tr.Arm(ctx, "fresh", t0.Add(10*time.Second))

			removed := tr.Prune(ctx, t0.Add(16*time.Second))

			Convey("Then only expired entries are removed", func() {
				So(removed, ShouldEqual, 1)
				So(tr.Size(), ShouldEqual, 1)
				So(tr.Blocked(ctx, "fresh", t0.Add(16*time.Second)), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryTrackerConcurrency(t *testing.T) {
	Convey("Given concurrent arms for distinct credentials", t, func() {
		ctx := context.Background()
		tr := cooldown.NewInMemoryTracker(cooldown.WithMaxSize(0))
		now := time.Now()

		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tr.Arm(ctx, fmt.Sprintf("card-%d", i), now)
			}(i)
		}
		wg.Wait()

		Convey("Then every credential is tracked", func() {
			So(tr.Size(), ShouldEqual, 200)
			So(tr.Blocked(ctx, "card-199", now), ShouldBeTrue)
		})
	})
}
