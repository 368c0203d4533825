package domain

import "time"

// RateRecord tracks submissions seen for one client key in the current window.
type RateRecord struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window has ended. A record is replaced, not
// incremented, once this returns true.
func (r RateRecord) Expired(now time.Time) bool {
	return now.After(r.ResetAt)
}
