package tapload

import "time"

// Defaults for a load run.
const (
	DefaultVenue       = "LOAD_HALL"
	DefaultWrongGate   = "LOAD_WRONG_GATE"
	DefaultCredentials = 200
	DefaultBurst       = 5
	DefaultUnknown     = 50
	DefaultTimeout     = 10 * time.Second
	DefaultCooldown    = 15 * time.Second
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)
