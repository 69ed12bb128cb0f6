// Package model contains domain models passed between layers.
package model

// Presence is a registrant's IN/OUT toggle.
type Presence string

// Presence states.
const (
	PresenceIn  Presence = "IN"
	PresenceOut Presence = "OUT"
)

// DefaultPhotoRef is assigned to identities imported without an official photo.
const DefaultPhotoRef = "/photos/default.png"

// Identity is a registrant bound to one venue.
type Identity struct {
	CredentialID  string   `json:"uid"`
	DisplayName   string   `json:"name"`
	AssignedVenue string   `json:"assigned_venue"`
	Presence      Presence `json:"presence"`
	PhotoRef      string   `json:"photo_url"`
}

// Toggle returns the presence after an admit and the tap type it records.
// Anything other than IN is treated as OUT.
func (p Presence) Toggle() (Presence, TapType) {
	if p == PresenceIn {
		return PresenceOut, TapExit
	}
	return PresenceIn, TapEntry
}
