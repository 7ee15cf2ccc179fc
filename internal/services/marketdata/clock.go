package marketdata

import "time"

// Timer one-shot timer handle.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call stopped it.
	Stop() bool
}

// Clock source of time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
