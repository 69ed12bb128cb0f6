package tapload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hallpass/internal/adapters/http/api"
	"github.com/okian/hallpass/internal/adapters/repository"
	app "github.com/okian/hallpass/internal/app"
	"github.com/okian/hallpass/pkg/logger"
)

func TestGenerate(t *testing.T) {
	Convey("Given a small plan", t, func() {
		cfg := &Config{Venue: "V", Burst: 3, Unknown: 2}
		roster := GenerateRoster(4)
		strangers := GenerateRoster(2)
		taps := GenerateTaps(cfg, roster, strangers)

		Convey("Then every kind is planned in the right amount", func() {
			So(taps, ShouldHaveLength, 4*3+2+2)
			kinds := map[string]int{}
			for _, tp := range taps {
				kinds[tp.Kind]++
				So(tp.GateID, ShouldEqual, "V")
			}
			So(kinds[KindBurst], ShouldEqual, 12)
			So(kinds[KindWrongHall], ShouldEqual, 2)
			So(kinds[KindUnknown], ShouldEqual, 2)
		})

		Convey("Then credentials are unique", func() {
			seen := map[string]bool{}
			for _, s := range append(roster, strangers...) {
				So(seen[s.UID], ShouldBeFalse)
				seen[s.UID] = true
			}
		})
	})
}

func TestVerify(t *testing.T) {
	t0 := time.UnixMilli(1_760_000_000_000)
	cfg := &Config{Cooldown: 15 * time.Second}
	admit := func(uid, tapType string, ts time.Time) Result {
		return Result{Tap: Tap{UID: uid}, Kind: KindBurst, Verdict: Verdict{Status: "VERIFIED", Message: "Access Granted", TapType: tapType, Timestamp: ts}}
	}
	double := Result{Tap: Tap{UID: "A"}, Kind: KindBurst, Verdict: Verdict{Status: "DENIED", Message: "Double Scan Detected", TapType: "DENIED"}}

	Convey("Given a clean run", t, func() {
		results := []Result{
			admit("A", "ENTRY", t0),
			double,
			admit("A", "EXIT", t0.Add(15*time.Second)),
			{Tap: Tap{UID: "S"}, Kind: KindWrongHall, Verdict: Verdict{Status: "DENIED", Message: "Wrong Hall", TapType: "DENIED"}},
			{Tap: Tap{UID: "U"}, Kind: KindUnknown, Verdict: Verdict{Status: "DENIED", Message: "Unregistered Card", TapType: "DENIED"}},
		}
		So(Verify(cfg, results), ShouldBeNil)
	})

	Convey("Given two admits inside the cooldown", t, func() {
		err := Verify(cfg, []Result{admit("A", "ENTRY", t0), admit("A", "EXIT", t0.Add(time.Second))})
		So(errors.Is(err, ErrViolation), ShouldBeTrue)
	})

	Convey("Given admits that do not alternate", t, func() {
		err := Verify(cfg, []Result{admit("A", "ENTRY", t0), admit("A", "ENTRY", t0.Add(time.Minute))})
		So(errors.Is(err, ErrViolation), ShouldBeTrue)
	})

	Convey("Given a credential that was never admitted", t, func() {
		So(errors.Is(Verify(cfg, []Result{double}), ErrViolation), ShouldBeTrue)
	})

	Convey("Given a history out of order", t, func() {
		err := VerifyHistory([]Latest{{Timestamp: t0}, {Timestamp: t0.Add(time.Second)}})
		So(errors.Is(err, ErrViolation), ShouldBeTrue)
		So(VerifyHistory([]Latest{{Timestamp: t0.Add(time.Second)}, {Timestamp: t0}}), ShouldBeNil)
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a hallpass server on an in-memory store", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		ctx := context.Background()

		svc := app.New(
			app.WithStorage(repository.DriverMemory, ""),
			app.WithSnapshotDir(t.TempDir()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a load run fires concurrent bursts", func() {
			out := filepath.Join(t.TempDir(), "report", "taps.json")
			err := Run(ctx, &Config{
				BaseURL:     srv.URL,
				Venue:       DefaultVenue,
				WrongGate:   DefaultWrongGate,
				Credentials: 20,
				Burst:       4,
				Unknown:     5,
				Workers:     8,
				Cooldown:    DefaultCooldown,
				Timeout:     5 * time.Second,
				OutputFile:  out,
			})

			Convey("Then every invariant holds", func() {
				So(err, ShouldBeNil)
				So(out, ShouldNotBeEmpty)
			})
		})
	})
}
