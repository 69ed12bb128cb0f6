// Package viewer implements the gate-side display: it polls the latest
// decision for one gate and drives a small state machine that shows who was
// admitted or why a tap was refused.
package viewer

import (
	"time"
)

// Default display timings.
const (
	DefaultPollInterval = time.Second
	DefaultProcessing   = time.Second
	DefaultHold         = 5 * time.Second
)

// Headlines shown for each phase.
const (
	HeadlineIdle       = "WAITING FOR SCAN"
	HeadlineProcessing = "VERIFYING..."
	HeadlineConfirmed  = "MATCH CONFIRMED"
	HeadlineDenied     = "ACCESS DENIED"
)

// Phase is what the display is currently showing.
type Phase int

// Display phases.
const (
	PhaseIdle Phase = iota
	PhaseProcessing
	PhaseConfirmed
	PhaseDenied
)

func (p Phase) String() string {
	switch p {
	case PhaseProcessing:
		return "processing"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseDenied:
		return "denied"
	default:
		return "idle"
	}
}

// Item is one feed entry as served by GET /api/attendance/latest.
type Item struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	PhotoURL  *string   `json:"photo_url"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	TapType   string    `json:"tap_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Verified reports whether the entry is an admit.
func (it Item) Verified() bool { return it.Status == "VERIFIED" }

// View is a rendering of the display at one instant. Identity fields are only
// set once an admit is confirmed.
type View struct {
	Gate     string
	Phase    Phase
	Headline string
	Name     string
	UID      string
	PhotoURL string
	TapType  string
	Reason   string
}

// Display is the per-gate state machine. It is not safe for concurrent use;
// one poller owns it.
type Display struct {
	gate       string
	processing time.Duration
	hold       time.Duration
	clock      func() time.Time

	lastSeen   time.Time
	phase      Phase
	current    Item
	acceptedAt time.Time
}

// DisplayOption configures a Display.
type DisplayOption func(*Display)

// WithTimings sets how long the processing phase lasts and how long a
// result stays up before the display clears.
func WithTimings(processing, hold time.Duration) DisplayOption {
	return func(d *Display) {
		if processing >= 0 {
			d.processing = processing
		}
		if hold > 0 {
			d.hold = hold
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) DisplayOption {
	return func(d *Display) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDisplay returns an idle display for gate. Entries older than the moment
// of construction are never shown.
func NewDisplay(gate string, opts ...DisplayOption) *Display {
	d := &Display{
		gate:       gate,
		processing: DefaultProcessing,
		hold:       DefaultHold,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.lastSeen = d.clock()
	return d
}

// Offer hands the display the newest feed entry. It is accepted only if it is
// strictly newer than the last one shown; accepted reports whether it was.
func (d *Display) Offer(it Item) (accepted bool) { //nolint:gocritic // hugeParam: items travel by value
	if !it.Timestamp.After(d.lastSeen) {
		return false
	}
	d.lastSeen = it.Timestamp
	d.current = it
	d.acceptedAt = d.clock()
	if it.Verified() {
		d.phase = PhaseProcessing
		if d.processing == 0 {
			d.phase = PhaseConfirmed
		}
	} else {
		d.phase = PhaseDenied
	}
	return true
}

// Tick advances timers. changed reports whether the phase moved.
func (d *Display) Tick() (changed bool) {
	if d.phase == PhaseIdle {
		return false
	}
	now := d.clock()
	elapsed := now.Sub(d.acceptedAt)
	switch {
	case elapsed >= d.hold:
		d.phase = PhaseIdle
		d.current = Item{}
		if now.After(d.lastSeen) {
			d.lastSeen = now
		}
		return true
	case d.phase == PhaseProcessing && elapsed >= d.processing:
		d.phase = PhaseConfirmed
		return true
	}
	return false
}

// Phase returns the current phase.
func (d *Display) Phase() Phase { return d.phase }

// LastSeen returns the timestamp new entries must exceed.
func (d *Display) LastSeen() time.Time { return d.lastSeen }

// View renders the current state.
func (d *Display) View() View {
	v := View{Gate: d.gate, Phase: d.phase}
	switch d.phase {
	case PhaseProcessing:
		v.Headline = HeadlineProcessing
	case PhaseConfirmed:
		v.Headline = HeadlineConfirmed
		v.Name = d.current.Name
		v.UID = d.current.UID
		v.TapType = d.current.TapType
		if d.current.PhotoURL != nil {
			v.PhotoURL = *d.current.PhotoURL
		}
	case PhaseDenied:
		v.Headline = HeadlineDenied
		v.Reason = d.current.Reason
	default:
		v.Headline = HeadlineIdle
	}
	return v
}
