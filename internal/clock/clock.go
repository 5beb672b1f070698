package clock

import "time"

// Clock abstracts time so TTLs and delayed tasks can be driven in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellation handle for a scheduled function.
type Timer interface {
	// Stop prevents the function from running. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

// Real is the production clock backed by the time package.
type Real struct{}

// New returns a clock reading the current system time.
func New() Real {
	return Real{}
}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f with time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
