// Package window checks a tap time against an event's validity window.
package window

import (
	"time"

	"github.com/okian/hallpass/internal/domain/model"
)

// Check returns the denial reason for now against ev, or "" when now lies in
// [ev.Start, ev.End]. Both bounds are inclusive.
func Check(ev model.Event, now time.Time) string {
	switch {
	case now.Before(ev.Start):
		return model.ReasonNotStarted
	case now.After(ev.End):
		return model.ReasonEnded
	default:
		return ""
	}
}

// Valid reports whether start precedes end.
func Valid(start, end time.Time) bool {
	return start.Before(end)
}
