package model

import "errors"

// Sentinel kinds shared by domain ports and their adapters.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidEvent = errors.New("invalid event")
)
