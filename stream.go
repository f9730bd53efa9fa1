package serialwait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Stream provides timed, interruptible byte I/O on an already-open
// descriptor such as a configured serial port or a pty. Every blocking
// operation runs the Waiter loop, so a stuck read always gives the caller a
// chance to interrupt it at the next poll boundary.
//
// Do not create multiple streams for the same descriptor unless you add
// your own synchronization.
type Stream struct {
	file   *os.File
	fd     int
	waiter *Waiter
	closed atomic.Bool

	mu         sync.RWMutex
	timeout    time.Duration
	hasTimeout bool
}

var (
	_ io.ReadWriteCloser = (*Stream)(nil)
	_ io.ByteReader      = (*Stream)(nil)
)

// NewStream wraps f, switching its descriptor to non-blocking mode. The
// stream takes ownership of f and closes it in Close.
func NewStream(f *os.File, opts ...Option) (*Stream, error) {
	if f == nil {
		return nil, ErrInvalidDescriptor
	}

	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set non-blocking on %s: %w", f.Name(), err)
	}

	w, err := NewWaiter(fd, f.Name(), opts...)
	if err != nil {
		return nil, err
	}

	config := w.Config()
	return &Stream{
		file:       f,
		fd:         fd,
		waiter:     w,
		timeout:    config.Timeout,
		hasTimeout: config.HasTimeout,
	}, nil
}

// Name returns the name of the underlying file
func (s *Stream) Name() string { return s.file.Name() }

// Waiter exposes the wait loop driving this stream
func (s *Stream) Waiter() *Waiter { return s.waiter }

// SetTimeout sets the default timeout for Read, ReadByte, ReadFull and
// Write. A zero timeout makes them return immediately when nothing is ready.
func (s *Stream) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return ErrInvalidConfig
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	s.hasTimeout = true
	return nil
}

// ClearTimeout removes the default timeout. Operations then wait until data
// arrives or they are interrupted.
func (s *Stream) ClearTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = 0
	s.hasTimeout = false
}

// Timeout returns the default timeout and whether one is set
func (s *Stream) Timeout() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeout, s.hasTimeout
}

// Interrupt makes the current or next blocking operation fail with an
// InterruptedError
func (s *Stream) Interrupt() { s.waiter.Interrupt() }

// ReadByte reads one byte under the default timeout
func (s *Stream) ReadByte() (byte, error) {
	deadline, timeout := s.defaultDeadline()
	return s.readByte(deadline, timeout)
}

// ReadByteTimeout reads one byte, giving up after timeout
func (s *Stream) ReadByteTimeout(timeout time.Duration) (byte, error) {
	if timeout < 0 {
		return 0, ErrInvalidConfig
	}
	return s.readByte(s.waiter.DeadlineAfter(timeout), timeout)
}

func (s *Stream) readByte(deadline Deadline, timeout time.Duration) (byte, error) {
	var b [1]byte
	if _, err := s.readSome(context.Background(), b[:], "ReadByte", deadline, timeout); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Read waits under the default timeout until at least one byte is
// available and returns what fits in p
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	deadline, timeout := s.defaultDeadline()
	return s.readSome(context.Background(), p, "Read", deadline, timeout)
}

// ReadContext waits until at least one byte is available, the context
// deadline passes, or the context is cancelled
func (s *Stream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.readSome(ctx, p, "ReadContext", NoDeadline(), 0)
}

// ReadAvailable returns whatever is already buffered without waiting. It
// may return 0 with a nil error.
func (s *Stream) ReadAvailable(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.readOnce(p)
}

// ReadFull blocks until len(p) bytes are read or the default timeout
// elapses. On timeout the bytes read so far are returned with the error.
func (s *Stream) ReadFull(p []byte) (int, error) {
	deadline, timeout := s.defaultDeadline()
	return s.readFull(context.Background(), p, "ReadFull", deadline, timeout)
}

// ReadFullTimeout is ReadFull with an explicit timeout
func (s *Stream) ReadFullTimeout(p []byte, timeout time.Duration) (int, error) {
	if timeout < 0 {
		return 0, ErrInvalidConfig
	}
	return s.readFull(context.Background(), p, "ReadFull", s.waiter.DeadlineAfter(timeout), timeout)
}

// ReadFullContext is ReadFull bounded by the context instead of the default
// timeout
func (s *Stream) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	return s.readFull(ctx, p, "ReadFull", NoDeadline(), 0)
}

func (s *Stream) readFull(ctx context.Context, p []byte, op string, deadline Deadline, timeout time.Duration) (int, error) {
	total := 0
	for total < len(p) {
		n, err := s.readSome(ctx, p[total:], op, deadline, timeout)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stream) readSome(ctx context.Context, p []byte, op string, deadline Deadline, timeout time.Duration) (int, error) {
	for {
		if s.closed.Load() {
			return 0, ErrClosed
		}
		n, err := s.readOnce(p)
		if n > 0 || err != nil {
			return n, err
		}
		err = s.waiter.Wait(ctx, WaitRequest{
			Op:       op,
			Events:   EventReadable,
			Deadline: deadline,
			Timeout:  timeout,
		})
		if err != nil {
			return 0, err
		}
	}
}

// readOnce performs a single non-blocking read. Nothing buffered yields
// (0, nil); end of stream yields io.EOF.
func (s *Stream) readOnce(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(s.fd, p)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, nil
	case err != nil:
		return 0, err
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// Available returns the number of bytes queued in the kernel input buffer
func (s *Stream) Available() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return unix.IoctlGetInt(s.fd, unix.TIOCINQ)
}

// Write writes all of p, waiting for writability under the default timeout
func (s *Stream) Write(p []byte) (int, error) {
	deadline, timeout := s.defaultDeadline()
	return s.write(context.Background(), p, deadline, timeout)
}

// WriteContext writes all of p bounded by the context
func (s *Stream) WriteContext(ctx context.Context, p []byte) (int, error) {
	return s.write(ctx, p, NoDeadline(), 0)
}

func (s *Stream) write(ctx context.Context, p []byte, deadline Deadline, timeout time.Duration) (int, error) {
	total := 0
	for total < len(p) {
		if s.closed.Load() {
			return total, ErrClosed
		}
		n, err := unix.Write(s.fd, p[total:])
		if n > 0 {
			total += n
		}
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		case err != nil:
			return total, err
		}
		if total == len(p) || n > 0 {
			continue
		}
		err = s.waiter.Wait(ctx, WaitRequest{
			Op:       "Write",
			Events:   EventWritable,
			Deadline: deadline,
			Timeout:  timeout,
		})
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close closes the descriptor and releases the waiter. In-flight operations
// should be interrupted first.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	return errors.Join(s.file.Close(), s.waiter.Close())
}

func (s *Stream) defaultDeadline() (Deadline, time.Duration) {
	timeout, ok := s.Timeout()
	if !ok {
		return NoDeadline(), 0
	}
	return s.waiter.DeadlineAfter(timeout), timeout
}
