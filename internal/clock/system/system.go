// Package system provides clocks for the import pipeline.
package system

import "time"

// Clock implements nepjol.Clock using the wall clock in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Tests and dry runs use it to pin
// "today" fallbacks.
type Fixed struct {
	At time.Time
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.At.UTC()
}
