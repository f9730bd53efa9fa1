package serialwait

import (
	"time"

	"golang.org/x/sys/unix"
)

// Instant is a monotonic clock reading in microseconds since an arbitrary
// epoch. Only differences between readings taken from the same Clock are
// meaningful; values may be negative.
type Instant int64

// Add returns the instant d after i, truncated to whole microseconds.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d/time.Microsecond)
}

// Sub returns the signed duration i-j.
func (i Instant) Sub(j Instant) time.Duration {
	return time.Duration(i-j) * time.Microsecond
}

// Clock supplies monotonic readings. Implementations must keep the same
// epoch for the lifetime of a wait loop.
type Clock interface {
	Now() Instant
}

// ClockFunc adapts a plain function to the Clock interface
type ClockFunc func() Instant

func (f ClockFunc) Now() Instant { return f() }

// MonotonicClock reads CLOCK_MONOTONIC, which is immune to wall-clock steps.
type MonotonicClock struct{}

var _ Clock = MonotonicClock{}

// Now returns the current CLOCK_MONOTONIC reading in microseconds
func (MonotonicClock) Now() Instant {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is mandatory on every supported kernel
		panic("serialwait: clock_gettime(CLOCK_MONOTONIC): " + err.Error())
	}
	return Instant(ts.Nano() / int64(time.Microsecond))
}
