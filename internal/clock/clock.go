package clock

import "time"

// Timer is a pending scheduled callback. Stop reports whether the
// callback was still pending.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for components that schedule work, so tests can
// drive timers deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// New returns a Clock backed by the system clock.
func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
