package model

import "time"

// Outcome is the result class of a decision.
type Outcome string

// Decision outcomes.
const (
	OutcomeVerified Outcome = "VERIFIED"
	OutcomeDenied   Outcome = "DENIED"
	OutcomeError    Outcome = "ERROR"
)

// TapType records which direction an admit went. Non-admits are TapDenied.
type TapType string

// Tap types.
const (
	TapEntry  TapType = "ENTRY"
	TapExit   TapType = "EXIT"
	TapDenied TapType = "DENIED"
)

// Reason texts surfaced to gates and viewers.
const (
	ReasonReadError    = "Read Error"
	ReasonDoubleScan   = "Double Scan Detected"
	ReasonUnregistered = "Unregistered Card"
	ReasonNoEvent      = "No Event at this Gate"
	ReasonNotStarted   = "Event Not Started"
	ReasonEnded        = "Event Ended"
	ReasonWrongHall    = "Wrong Hall"
	ReasonGranted      = "Access Granted"
)

// LogEntry is one immutable attendance log record.
type LogEntry struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"uid"`
	Outcome      Outcome   `json:"status"`
	Reason       string    `json:"reason"`
	TapType      TapType   `json:"tap_type"`
	Gate         string    `json:"gate_id"`
	Timestamp    time.Time `json:"timestamp"`
	SnapshotRef  string    `json:"snapshot_url,omitempty"`
}

// Status is a log entry joined with the identity's current display data.
type Status struct {
	LogEntry
	DisplayName string `json:"name"`
	PhotoRef    string `json:"photo_url"`
}
