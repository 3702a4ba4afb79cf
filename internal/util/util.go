package util

import "time"

// Clock returns the current time. Production code uses DefaultClock;
// tests substitute a synthetic clock to drive cache expiry and
// refresh-ahead windows without sleeping.
type Clock func() time.Time

// DefaultClock reports the current wall-clock time.
func DefaultClock() time.Time { return time.Now() }
