package netreactor

import "time"

// Timestamp is a monotonic instant captured when a readiness event
// arrives at a Poller. It wraps time.Time rather than a raw integer so
// comparisons and arithmetic stay correct across leap seconds and clock
// adjustments within a single process.
type Timestamp struct {
	t time.Time
}

// Now returns the current Timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// Add returns a Timestamp advanced by the given number of seconds
// (fractional seconds are honored).
func (ts Timestamp) Add(seconds float64) Timestamp {
	return Timestamp{t: ts.t.Add(time.Duration(seconds * float64(time.Second)))}
}

// Before reports whether ts occurs before other.
func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

// After reports whether ts occurs after other.
func (ts Timestamp) After(other Timestamp) bool {
	return ts.t.After(other.t)
}

// Sub returns the duration between ts and other.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	return ts.t.Sub(other.t)
}

// IsZero reports whether ts is the zero Timestamp.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// Time returns the underlying time.Time.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// String formats ts for logging.
func (ts Timestamp) String() string {
	return ts.t.Format("2006-01-02 15:04:05.000000")
}
