package snapshot

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrInvalidName = errors.New("invalid snapshot name")
	ErrTooLarge    = errors.New("snapshot exceeds size limit")
	ErrEmpty       = errors.New("empty snapshot")
)
