package serialwait

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Events selects which readiness condition a wait blocks on
type Events int

const (
	EventReadable Events = 1 << iota
	EventWritable
)

func (e Events) String() string {
	switch e {
	case EventReadable:
		return "read"
	case EventWritable:
		return "write"
	case EventReadable | EventWritable:
		return "read|write"
	default:
		return "none"
	}
}

// Outcome describes how one iteration of a wait loop ended
type Outcome int

const (
	OutcomePending     Outcome = iota // interval elapsed, deadline still ahead
	OutcomeReady                      // descriptor became ready
	OutcomeTimedOut                   // deadline reached with nothing ready
	OutcomeInterrupted                // interruption flag or context observed
	OutcomeSignal                     // poll returned EINTR
	OutcomeWakeup                     // self-pipe woke the poll
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeReady:
		return "ready"
	case OutcomeTimedOut:
		return "timeout"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeSignal:
		return "signal"
	case OutcomeWakeup:
		return "wakeup"
	default:
		return "error"
	}
}

// Iteration is one pass through a wait loop, as reported to an Observer
type Iteration struct {
	Seq         uint64
	Target      string
	Op          string
	Events      Events
	Now         Instant
	Deadline    Deadline
	Instruction WaitInstruction
	Outcome     Outcome
	Err         error
}

// WaitRequest describes a single blocking wait
type WaitRequest struct {
	Op       string        // operation name used in errors, e.g. ReadByte
	Events   Events        // readiness to wait for
	Deadline Deadline      // absolute deadline; combined with the context's
	Timeout  time.Duration // configured timeout, reported in TimeoutError
}

// Waiter runs the deadline-aware readiness loop for one descriptor. The
// descriptor is owned by the caller; the Waiter never reads or closes it.
//
// A Waiter is safe for concurrent use. With WithWakeup every in-flight Wait
// holds its own wakeup pipe, so Interrupt and a context cancellation reach
// all of them; the interruption flag itself is still consumed by one wait.
type Waiter struct {
	fd     int
	target string
	config Config
	poll   PollPeriod

	interrupted atomic.Bool
	seq         atomic.Uint64

	// wakeup pipes, only when WithWakeup is used
	mu     sync.Mutex
	idle   []*wakePipe
	active map[*wakePipe]struct{}
	closed bool
}

// wakePipe is a non-blocking self-pipe. A byte written to w makes r readable.
type wakePipe struct {
	r, w int
}

func newWakePipe() (*wakePipe, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("wakeup pipe: %w", err)
	}
	return &wakePipe{r: p[0], w: p[1]}, nil
}

func (p *wakePipe) signal() {
	// EAGAIN means a wakeup is already pending
	_, _ = unix.Write(p.w, []byte{1})
}

func (p *wakePipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *wakePipe) close() error {
	return errors.Join(unix.Close(p.r), unix.Close(p.w))
}

// NewWaiter creates a Waiter for fd. target names the descriptor in errors.
func NewWaiter(fd int, target string, opts ...Option) (*Waiter, error) {
	if fd < 0 {
		return nil, ErrInvalidDescriptor
	}
	config, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	w := &Waiter{
		fd:     fd,
		target: target,
		config: config,
		poll:   config.Poll(),
	}

	if config.Wakeup {
		p, err := newWakePipe()
		if err != nil {
			return nil, err
		}
		w.idle = []*wakePipe{p}
		w.active = make(map[*wakePipe]struct{})
	}

	return w, nil
}

// Config returns the effective configuration
func (w *Waiter) Config() Config { return w.config }

// Target returns the descriptor name used in errors
func (w *Waiter) Target() string { return w.target }

// Interrupt sets the interruption flag. The next wait to observe it fails
// with an InterruptedError and clears the flag. Without a wakeup pipe the
// flag is noticed at the next poll boundary.
func (w *Waiter) Interrupt() {
	w.interrupted.Store(true)
	w.wake()
}

// DeadlineAfter returns the deadline timeout from now on the waiter's clock
func (w *Waiter) DeadlineAfter(timeout time.Duration) Deadline {
	return DeadlineAt(w.config.Clock.Now().Add(timeout))
}

// DeadlineFor translates the context deadline, if any, onto the waiter's clock
func (w *Waiter) DeadlineFor(ctx context.Context) Deadline {
	dl, ok := ctx.Deadline()
	if !ok {
		return NoDeadline()
	}
	return DeadlineAt(w.config.Clock.Now().Add(time.Until(dl)))
}

// Wait blocks until the descriptor is ready for req.Events, the deadline
// passes, or the wait is interrupted.
func (w *Waiter) Wait(ctx context.Context, req WaitRequest) error {
	if req.Events&(EventReadable|EventWritable) == 0 {
		return ErrInvalidConfig
	}

	deadline := req.Deadline.Earliest(w.DeadlineFor(ctx))

	var wp *wakePipe
	if w.config.Wakeup {
		var err error
		if wp, err = w.acquireWake(); err != nil {
			return fmt.Errorf("%s %s: %w", w.target, req.Op, err)
		}
		defer w.releaseWake(wp)
		stop := context.AfterFunc(ctx, w.wake)
		defer stop()
	}

	for {
		it := Iteration{
			Seq:      w.seq.Add(1),
			Target:   w.target,
			Op:       req.Op,
			Events:   req.Events,
			Deadline: deadline,
		}

		if err := w.checkInterrupted(ctx, req.Op); err != nil {
			it.Now = w.config.Clock.Now()
			it.Outcome = OutcomeInterrupted
			it.Err = err
			w.report(it)
			return err
		}

		it.Now = w.config.Clock.Now()
		instr, err := ComputeWaitInterval(it.Now, deadline, w.poll)
		if errors.Is(err, ErrNoWakeupStrategy) && wp != nil {
			// the self-pipe is the escape hatch
			instr, err = BlockForever(), nil
		}
		if err != nil {
			err = fmt.Errorf("%s %s: %w", w.target, req.Op, err)
			it.Outcome = OutcomeError
			it.Err = err
			w.report(it)
			return err
		}
		it.Instruction = instr

		ready, woke, err := w.pollOnce(req.Events, instr, wp)
		switch {
		case errors.Is(err, unix.EINTR):
			it.Outcome = OutcomeSignal
			w.report(it)
			continue
		case err != nil:
			err = fmt.Errorf("%s %s: poll: %w", w.target, req.Op, err)
			it.Outcome = OutcomeError
			it.Err = err
			w.report(it)
			return err
		case ready:
			it.Outcome = OutcomeReady
			w.report(it)
			return nil
		case woke:
			it.Outcome = OutcomeWakeup
			w.report(it)
			continue
		}

		if at, ok := deadline.At(); ok && w.config.Clock.Now() >= at {
			err := &TimeoutError{Target: w.target, Op: req.Op, Timeout: req.Timeout}
			it.Outcome = OutcomeTimedOut
			it.Err = err
			w.report(it)
			return err
		}

		it.Outcome = OutcomePending
		w.report(it)
	}
}

// Close releases the wakeup pipes. It does not close the watched descriptor.
// Pipes held by in-flight waits are released when those waits return.
func (w *Waiter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	for _, p := range w.idle {
		errs = append(errs, p.close())
	}
	w.idle = nil
	return errors.Join(errs...)
}

func (w *Waiter) acquireWake() (*wakePipe, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	var p *wakePipe
	if n := len(w.idle); n > 0 {
		p, w.idle = w.idle[n-1], w.idle[:n-1]
	} else {
		var err error
		if p, err = newWakePipe(); err != nil {
			return nil, err
		}
	}
	w.active[p] = struct{}{}
	return p, nil
}

func (w *Waiter) releaseWake(p *wakePipe) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, p)
	if w.closed {
		_ = p.close()
		return
	}
	p.drain()
	w.idle = append(w.idle, p)
}

func (w *Waiter) checkInterrupted(ctx context.Context, op string) error {
	if w.interrupted.Swap(false) {
		return &InterruptedError{Target: w.target, Op: op}
	}
	// an expired context deadline is already folded into the wait deadline
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return &InterruptedError{Target: w.target, Op: op, Cause: err}
	}
	return nil
}

// pollOnce performs a single poll(2) on the descriptor and, when present,
// the wakeup pipe of the calling wait.
func (w *Waiter) pollOnce(events Events, instr WaitInstruction, wp *wakePipe) (ready, woke bool, err error) {
	var want int16
	if events&EventReadable != 0 {
		want |= unix.POLLIN
	}
	if events&EventWritable != 0 {
		want |= unix.POLLOUT
	}

	fds := []unix.PollFd{{Fd: int32(w.fd), Events: want}}
	if wp != nil {
		fds = append(fds, unix.PollFd{Fd: int32(wp.r), Events: unix.POLLIN})
	}

	n, err := unix.Poll(fds, pollTimeout(instr))
	if err != nil || n <= 0 {
		return false, false, err
	}

	if wp != nil && fds[1].Revents&unix.POLLIN != 0 {
		wp.drain()
		woke = true
	}

	revents := fds[0].Revents
	if revents&unix.POLLNVAL != 0 {
		return false, woke, unix.EBADF
	}
	// hangup and error conditions surface through the following read or write
	ready = revents&(want|unix.POLLHUP|unix.POLLERR) != 0
	return ready, woke, nil
}

// wake signals every wait currently blocked on this Waiter
func (w *Waiter) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.active {
		p.signal()
	}
}

func (w *Waiter) report(it Iteration) {
	w.config.Logger.Debug().
		Str("target", it.Target).
		Str("op", it.Op).
		Uint64("seq", it.Seq).
		Int64("now_us", int64(it.Now)).
		Stringer("deadline", it.Deadline).
		Stringer("wait", it.Instruction).
		Stringer("outcome", it.Outcome).
		Err(it.Err).
		Msg("wait iteration")

	if w.config.Observer != nil {
		w.config.Observer(it)
	}
}

// pollTimeout converts an instruction into the poll(2) timeout in
// milliseconds, rounding up so a wait never ends before its interval. -1
// blocks indefinitely.
func pollTimeout(instr WaitInstruction) int {
	if instr.Forever() {
		return -1
	}
	ms := (instr.Micros() + 999) / 1000
	return int(min(ms, math.MaxInt32))
}
