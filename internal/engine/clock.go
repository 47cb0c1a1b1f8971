package engine

import "time"

// Clock supplies the engine's notion of "today". The sweep trusts its
// clock completely; tests and the --as-of flag substitute fixed dates.
//
// Implemented by SystemClock (production) and testutil.FixedClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current instant. The engine truncates it to a UTC
// calendar day before use.
func (SystemClock) Now() time.Time {
	return time.Now()
}
