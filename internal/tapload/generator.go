package tapload

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// newCredential returns a card-like uid.
func newCredential() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// GenerateRoster creates n students with unique credentials.
func GenerateRoster(n int) []Student {
	out := make([]Student, n)
	for i := range out {
		out[i] = Student{UID: newCredential(), Name: fmt.Sprintf("Load Student %04d", i+1)}
	}
	return out
}

// GenerateTaps builds the tap plan: Burst concurrent taps per roster student
// at the venue, one tap per stranger (a student bound to the other gate) at
// the venue, and Unknown taps from unregistered cards. The plan is shuffled.
func GenerateTaps(cfg *Config, roster, strangers []Student) []Tap {
	taps := make([]Tap, 0, len(roster)*cfg.Burst+len(strangers)+cfg.Unknown)
	for _, s := range roster {
		for i := 0; i < cfg.Burst; i++ {
			taps = append(taps, Tap{UID: s.UID, GateID: cfg.Venue, Kind: KindBurst})
		}
	}
	for _, s := range strangers {
		taps = append(taps, Tap{UID: s.UID, GateID: cfg.Venue, Kind: KindWrongHall})
	}
	for i := 0; i < cfg.Unknown; i++ {
		taps = append(taps, Tap{UID: "UNKNOWN" + newCredential(), GateID: cfg.Venue, Kind: KindUnknown})
	}
	shuffle(taps)
	return taps
}

// shuffle is a Fisher-Yates shuffle on crypto/rand.
func shuffle(taps []Tap) {
	for i := len(taps) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return
		}
		j := int(n.Int64())
		taps[i], taps[j] = taps[j], taps[i]
	}
}
