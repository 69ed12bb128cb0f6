package model

import "time"

// Event is a time-boxed authorization window bound to one venue.
type Event struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Venue     string    `json:"venueBSSID"`
	Start     time.Time `json:"startTime"`
	End       time.Time `json:"endTime"`
	CreatedAt time.Time `json:"createdAt"`
}
