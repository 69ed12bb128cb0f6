package tapload

import (
	"errors"
	"fmt"
	"sort"
)

// ErrViolation reports that the server broke an access invariant.
var ErrViolation = errors.New("invariant violated")

// Verify checks the results of a run and returns every violation found,
// joined. A nil error means the run was clean.
func Verify(cfg *Config, results []Result) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrViolation}, args...)...))
	}

	admits := map[string][]Verdict{}
	for _, r := range results {
		if r.Err != "" {
			fail("tap %s at %s failed: %s", r.Tap.UID, r.Tap.GateID, r.Err)
			continue
		}
		v := r.Verdict
		switch r.Kind {
		case KindBurst:
			switch {
			case v.Status == "VERIFIED":
				admits[r.Tap.UID] = append(admits[r.Tap.UID], v)
			case v.Status == "DENIED" && v.Message == "Double Scan Detected":
			default:
				fail("tap %s: unexpected %s/%q", r.Tap.UID, v.Status, v.Message)
			}
		case KindWrongHall:
			if v.Status != "DENIED" || v.Message != "Wrong Hall" {
				fail("stranger %s: want DENIED/\"Wrong Hall\", got %s/%q", r.Tap.UID, v.Status, v.Message)
			}
		case KindUnknown:
			if v.Status != "DENIED" || v.Message != "Unregistered Card" {
				fail("unknown %s: want DENIED/\"Unregistered Card\", got %s/%q", r.Tap.UID, v.Status, v.Message)
			}
		}
		if v.Status != "VERIFIED" && v.TapType != "DENIED" {
			fail("tap %s: refused tap recorded as %s", r.Tap.UID, v.TapType)
		}
	}

	for uid, vs := range admits {
		sort.Slice(vs, func(i, j int) bool { return vs[i].Timestamp.Before(vs[j].Timestamp) })
		for i, v := range vs {
			want := "ENTRY"
			if i%2 == 1 {
				want = "EXIT"
			}
			if v.TapType != want {
				fail("credential %s admit %d: want %s, got %s", uid, i+1, want, v.TapType)
			}
			if i > 0 && v.Timestamp.Sub(vs[i-1].Timestamp) < cfg.Cooldown {
				fail("credential %s admitted twice within %s", uid, cfg.Cooldown)
			}
		}
	}

	burst := map[string]bool{}
	for _, r := range results {
		if r.Kind == KindBurst && r.Err == "" {
			burst[r.Tap.UID] = true
		}
	}
	for uid := range burst {
		if len(admits[uid]) == 0 {
			fail("credential %s was never admitted", uid)
		}
	}

	return errors.Join(errs...)
}

// VerifyHistory checks a gate history is newest first.
func VerifyHistory(items []Latest) error {
	for i := 1; i < len(items); i++ {
		if items[i].Timestamp.After(items[i-1].Timestamp) {
			return fmt.Errorf("%w: history entry %d is newer than entry %d", ErrViolation, i, i-1)
		}
	}
	return nil
}
