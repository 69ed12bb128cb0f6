// Package tapload drives concurrent reader taps against a running hallpass
// server and checks the access invariants from the outside.
package tapload

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Venue       string        // Gate the generated event is bound to
	WrongGate   string        // Gate used for wrong-hall taps
	Credentials int           // Number of generated roster entries
	Burst       int           // Concurrent taps per credential
	Unknown     int           // Taps from unregistered cards
	Workers     int           // Number of concurrent workers
	Cooldown    time.Duration // Server cooldown window, for verification
	Timeout     time.Duration // HTTP request timeout
	OutputFile  string        // Optional JSON report of every tap
	Verbose     bool          // Enable per-tap debug logging
}

// Student is one roster row sent with the generated event.
type Student struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Tap is one reader tap to submit.
type Tap struct {
	UID    string `json:"uid"`
	GateID string `json:"gate_id"`
	Kind   string `json:"-"`
}

// Tap kinds, used to pick the expected verdict.
const (
	KindBurst     = "burst"
	KindWrongHall = "wrong_hall"
	KindUnknown   = "unknown"
)

// Verdict is the server's answer to a tap.
type Verdict struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	TapType   string    `json:"tap_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Result pairs a tap with what the server said.
type Result struct {
	Tap     Tap     `json:"tap"`
	Kind    string  `json:"kind"`
	Verdict Verdict `json:"verdict"`
	Err     string  `json:"error,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	TapsGenerated int
	TapsSubmitted int
	Verified      int
	Denied        int
	Errors        int
	Failed        int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}
