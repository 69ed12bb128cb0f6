package roster

import "errors"

// Sentinel kinds for roster import errors.
var (
	ErrMissingVenue = errors.New("missing venue")
	ErrMissingUID   = errors.New("missing uid")
	ErrMalformedCSV = errors.New("malformed roster csv")
)
