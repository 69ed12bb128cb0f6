package publisher

import "errors"

// Sentinel kinds for publisher errors.
var (
	ErrNoBrokers   = errors.New("no kafka brokers configured")
	ErrCircuitOpen = errors.New("publisher circuit open")
)
