// Package serialwait provides deadline-aware, interruptible blocking waits
// for serial-port style descriptors on Linux.
//
// The heart of the package is ComputeWaitInterval, a pure function that
// decides how long the next poll(2) may sleep given the current monotonic
// time, an optional deadline and an optional poll period. The poll period
// bounds every individual wait so a waiting goroutine regains control often
// enough to notice an interruption request, while the deadline ensures it
// never oversleeps a timeout.
//
// # Computing a Wait
//
//	now := serialwait.MonotonicClock{}.Now()
//	instr, err := serialwait.ComputeWaitInterval(
//	    now,
//	    serialwait.DeadlineAt(now.Add(2*time.Second)),
//	    serialwait.PollEvery(300),
//	)
//	if errors.Is(err, serialwait.ErrNoWakeupStrategy) {
//	    // neither a deadline nor a poll period: a configuration error
//	}
//	sec, usec := instr.Timeval() // 0s 300000µs
//
// # Waiting on a Descriptor
//
// A Waiter runs the full loop for one descriptor owned by the caller:
//
//	w, err := serialwait.NewWaiter(fd, "/dev/ttyUSB0",
//	    serialwait.WithPollPeriod(100*time.Millisecond),
//	)
//	err = w.Wait(ctx, serialwait.WaitRequest{
//	    Op:       "read",
//	    Events:   serialwait.EventReadable,
//	    Deadline: w.DeadlineAfter(5 * time.Second),
//	    Timeout:  5 * time.Second,
//	})
//
// Call Interrupt from another goroutine to abort the wait; the loop notices
// at the next poll boundary, or immediately when WithWakeup is used.
//
// # Streams
//
// Stream wraps an already-open *os.File with timed reads and writes:
//
//	s, err := serialwait.NewStream(file, serialwait.WithTimeout(time.Second))
//	b, err := s.ReadByte()
//	n, err := s.ReadFullTimeout(buf, 2*time.Second)
//	n, err = s.ReadAvailable(buf) // never blocks
//
// # Error Handling
//
//	var (
//	    ErrNoWakeupStrategy // no deadline and no poll period
//	    ErrTimeout          // wrapped by *TimeoutError
//	    ErrInterrupted      // wrapped by *InterruptedError
//	    ErrClosed
//	    // ... and more
//	)
//
// Use errors.Is() for error type checking and errors.As() to get the target,
// operation and timeout out of a *TimeoutError.
//
// # Default Configuration
//
//   - PollPeriod: 100ms
//   - Timeout: none (wait until data or interruption)
//   - Clock: CLOCK_MONOTONIC
//   - Logger: disabled zerolog logger
package serialwait
