// Package system provides clocks for stamping records and checkpoints.
package system

import "time"

// Clock implements linkcheck.Clock using the local wall clock, which is what
// operators read the workbook and stamp file against.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time truncated to the second.
func (Clock) Now() time.Time {
	return time.Now().Truncate(time.Second)
}

// Fixed is a clock frozen at a single instant.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.At
}
