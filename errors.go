package serialwait

import (
	"errors"
	"fmt"
	"time"
)

// Predefined error types for robust error handling
var (
	// ErrNoWakeupStrategy is returned when a wait has neither a deadline nor a
	// poll period, so nothing would ever wake the waiting goroutine.
	ErrNoWakeupStrategy = errors.New("no wakeup strategy: neither deadline nor poll period set")

	ErrTimeout           = errors.New("operation timed out")
	ErrInterrupted       = errors.New("operation interrupted")
	ErrClosed            = errors.New("descriptor is closed")
	ErrInvalidConfig     = errors.New("invalid wait configuration")
	ErrInvalidPollPeriod = errors.New("poll period must be a non-negative whole number of milliseconds")
	ErrInvalidDescriptor = errors.New("invalid file descriptor")
)

// TimeoutError reports that a deadline elapsed before the descriptor became ready.
type TimeoutError struct {
	Target  string        // descriptor name, e.g. /dev/ttyUSB0
	Op      string        // operation that gave up, e.g. ReadByte
	Timeout time.Duration // configured timeout; zero when the deadline came from a context
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s %s: %v after %v", e.Target, e.Op, ErrTimeout, e.Timeout)
	}
	return fmt.Sprintf("%s %s: %v", e.Target, e.Op, ErrTimeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// InterruptedError reports that the interruption flag or the context
// cancelled a wait at a poll boundary.
type InterruptedError struct {
	Target string
	Op     string
	Cause  error // context error, nil when Interrupt was called
}

func (e *InterruptedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Target, e.Op, ErrInterrupted, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Target, e.Op, ErrInterrupted)
}

func (e *InterruptedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInterrupted, e.Cause}
	}
	return []error{ErrInterrupted}
}
