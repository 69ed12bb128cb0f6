package tapload

import "os"

// ShowHelp prints usage information for the tap load tool.
func ShowHelp() {
	os.Stdout.WriteString(`hallpass tap load
=================

Creates an event with a generated roster, fires concurrent taps at it and
checks the verdicts: one admit per credential per cooldown window, alternating
ENTRY/EXIT, Wrong Hall for students of another gate, Unregistered Card for
unknown cards.

Usage:
  go run ./cmd/tap-load [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -venue string        Gate the generated event is bound to (default "LOAD_HALL")
  -other-gate string   Gate for the wrong-hall roster (default "LOAD_WRONG_GATE")
  -credentials int     Roster size (default 200)
  -burst int           Concurrent taps per credential (default 5)
  -unknown int         Taps from unregistered cards (default 50)
  -workers int         Concurrent workers (default CPU cores * 2)
  -cooldown duration   Server cooldown window (default 15s)
  -timeout duration    HTTP request timeout (default 10s)
  -output string       Write every tap and verdict to this JSON file
  -verbose             Log every tap
  -help                Show this help message
`)
}
