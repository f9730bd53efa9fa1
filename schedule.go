package serialwait

import (
	"fmt"
	"math"
	"time"
)

const microsPerSecond = 1_000_000

// Deadline is an optional absolute Instant after which an operation gives
// up. The zero value means "no deadline", which is distinct from a deadline
// that has already passed.
type Deadline struct {
	at    Instant
	valid bool
}

// NoDeadline returns the absent deadline
func NoDeadline() Deadline { return Deadline{} }

// DeadlineAt returns a deadline at the given instant
func DeadlineAt(at Instant) Deadline { return Deadline{at: at, valid: true} }

// At returns the deadline instant and whether one is set.
func (d Deadline) At() (Instant, bool) { return d.at, d.valid }

// IsSet reports whether a deadline is present
func (d Deadline) IsSet() bool { return d.valid }

// Earliest returns whichever of d and o expires first. An absent deadline
// never wins over a present one.
func (d Deadline) Earliest(o Deadline) Deadline {
	switch {
	case !d.valid:
		return o
	case !o.valid:
		return d
	case o.at < d.at:
		return o
	default:
		return d
	}
}

func (d Deadline) String() string {
	if !d.valid {
		return "none"
	}
	return fmt.Sprintf("%dµs", int64(d.at))
}

// PollPeriod is an optional interval, in milliseconds, bounding every
// individual wait so the waiter regains control to look at its
// interruption flag. The zero value means "no polling".
type PollPeriod struct {
	ms int64
}

// NoPoll returns the absent poll period
func NoPoll() PollPeriod { return PollPeriod{} }

// PollEvery returns a poll period of ms milliseconds. Zero or negative
// values yield the absent poll period.
func PollEvery(ms int64) PollPeriod {
	if ms <= 0 {
		return PollPeriod{}
	}
	return PollPeriod{ms: ms}
}

// PollDuration converts a duration to a PollPeriod. Durations must be a
// non-negative whole number of milliseconds.
func PollDuration(d time.Duration) (PollPeriod, error) {
	if d < 0 || d%time.Millisecond != 0 {
		return PollPeriod{}, ErrInvalidPollPeriod
	}
	return PollEvery(int64(d / time.Millisecond)), nil
}

// Millis returns the period in milliseconds and whether one is set.
func (p PollPeriod) Millis() (int64, bool) { return p.ms, p.ms > 0 }

// IsSet reports whether a poll period is present
func (p PollPeriod) IsSet() bool { return p.ms > 0 }

// Duration returns the period as a time.Duration, zero when absent.
func (p PollPeriod) Duration() time.Duration {
	if p.ms > math.MaxInt64/int64(time.Millisecond) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(p.ms) * time.Millisecond
}

func (p PollPeriod) micros() int64 {
	if p.ms > math.MaxInt64/1000 {
		return math.MaxInt64
	}
	return p.ms * 1000
}

func (p PollPeriod) String() string {
	if p.ms <= 0 {
		return "none"
	}
	return fmt.Sprintf("%dms", p.ms)
}

// WaitInstruction tells the caller how long its next blocking wait may
// sleep: either forever, or for a bounded, non-negative number of
// microseconds.
type WaitInstruction struct {
	forever bool
	micros  int64
}

// BlockForever returns an instruction to wait without a time limit
func BlockForever() WaitInstruction { return WaitInstruction{forever: true} }

// WaitFor returns an instruction to wait at most micros microseconds.
// Negative values are clamped to zero.
func WaitFor(micros int64) WaitInstruction {
	if micros < 0 {
		micros = 0
	}
	return WaitInstruction{micros: micros}
}

// Forever reports whether the wait has no time limit
func (w WaitInstruction) Forever() bool { return w.forever }

// Micros returns the bounded wait length. It is zero for BlockForever.
func (w WaitInstruction) Micros() int64 {
	if w.forever {
		return 0
	}
	return w.micros
}

// Duration returns the bounded wait length and false for BlockForever.
func (w WaitInstruction) Duration() (time.Duration, bool) {
	if w.forever {
		return 0, false
	}
	if w.micros > math.MaxInt64/int64(time.Microsecond) {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(w.micros) * time.Microsecond, true
}

// Timeval decomposes the wait into whole seconds and a microsecond
// remainder in [0, 1_000_000). Both are zero for BlockForever.
func (w WaitInstruction) Timeval() (sec, usec int64) {
	m := w.Micros()
	if m <= 0 {
		return 0, 0
	}
	return m / microsPerSecond, m % microsPerSecond
}

func (w WaitInstruction) String() string {
	if w.forever {
		return "block forever"
	}
	sec, usec := w.Timeval()
	return fmt.Sprintf("wait %d.%06ds", sec, usec)
}

// ComputeWaitInterval decides how long the next blocking wait may sleep.
//
// Without a deadline the poll period governs; without either there is no
// way to wake the waiter and ErrNoWakeupStrategy is returned. A deadline at
// or before now yields a zero-length wait, after which the caller reports
// the timeout. Otherwise the shorter of the remaining budget and the poll
// period is used.
func ComputeWaitInterval(now Instant, deadline Deadline, poll PollPeriod) (WaitInstruction, error) {
	at, hasDeadline := deadline.At()
	if !hasDeadline {
		if !poll.IsSet() {
			return WaitInstruction{}, ErrNoWakeupStrategy
		}
		return WaitFor(poll.micros()), nil
	}

	if at <= now {
		return WaitFor(0), nil
	}

	remaining := remainingMicros(at, now)
	if poll.IsSet() && poll.micros() < remaining {
		return WaitFor(poll.micros()), nil
	}
	return WaitFor(remaining), nil
}

// remainingMicros returns at-now for at > now, saturating on overflow.
func remainingMicros(at, now Instant) int64 {
	r := int64(at) - int64(now)
	if r < 0 {
		// at > now but the subtraction wrapped
		return math.MaxInt64
	}
	return r
}
