package sqlite

import "errors"

// Sentinel kinds for sqlite store errors.
var (
	ErrClosed = errors.New("sqlite store closed")
)
