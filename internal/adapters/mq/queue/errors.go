package queue

import "errors"

// Sentinel kinds for queue consumers.
var (
	ErrStopped = errors.New("queue stopped")
)
