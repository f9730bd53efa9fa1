package serialwait

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newPipe(t *testing.T) (r, w *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })
	return r, w
}

type recorder struct {
	iterations []Iteration
}

func (r *recorder) observe(it Iteration) { r.iterations = append(r.iterations, it) }

func (r *recorder) last() Iteration { return r.iterations[len(r.iterations)-1] }

func TestWaiter_ReadyImmediately(t *testing.T) {
	r, w := newPipe(t)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)

	rec := &recorder{}
	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithObserver(rec.observe))
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close() })

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(time.Second),
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	require.Len(t, rec.iterations, 1)
	require.Equal(t, OutcomeReady, rec.last().Outcome)
	require.Equal(t, "read", rec.last().Op)
}

func TestWaiter_Writable(t *testing.T) {
	_, w := newPipe(t)

	waiter, err := NewWaiter(int(w.Fd()), "pipe")
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "write",
		Events:   EventWritable,
		Deadline: waiter.DeadlineAfter(time.Second),
	})
	require.NoError(t, err)
}

func TestWaiter_TimesOutAtDeadline(t *testing.T) {
	r, _ := newPipe(t)

	rec := &recorder{}
	waiter, err := NewWaiter(int(r.Fd()), "pipe",
		WithPollPeriod(10*time.Millisecond),
		WithObserver(rec.observe),
	)
	require.NoError(t, err)

	start := time.Now()
	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "ReadByte",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(60 * time.Millisecond),
		Timeout:  60 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "pipe", te.Target)
	require.Equal(t, "ReadByte", te.Op)
	require.Equal(t, 60*time.Millisecond, te.Timeout)
	require.GreaterOrEqual(t, elapsed, 60*time.Millisecond)

	// the poll period split the wait into several bounded iterations
	require.Greater(t, len(rec.iterations), 2)
	for _, it := range rec.iterations {
		require.False(t, it.Instruction.Forever())
		require.LessOrEqual(t, it.Instruction.Micros(), int64(10_000))
	}
	require.Equal(t, OutcomeTimedOut, rec.last().Outcome)
}

func TestWaiter_ExpiredDeadlineChecksOnce(t *testing.T) {
	r, _ := newPipe(t)

	rec := &recorder{}
	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithObserver(rec.observe))
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(-time.Second),
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.Len(t, rec.iterations, 1)
	require.Equal(t, int64(0), rec.last().Instruction.Micros())
}

func TestWaiter_ExpiredDeadlineStillSeesData(t *testing.T) {
	r, w := newPipe(t)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)

	waiter, err := NewWaiter(int(r.Fd()), "pipe")
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(0),
	})
	require.NoError(t, err)
}

func TestWaiter_NoWakeupStrategy(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(0))
	require.NoError(t, err)

	err = waiter.Wait(context.Background(), WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrNoWakeupStrategy)
}

func TestWaiter_DataArrivesMidWait(t *testing.T) {
	r, w := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(10*time.Millisecond))
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte("late"))
	}()

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(5 * time.Second),
	})
	require.NoError(t, err)
}

func TestWaiter_InterruptAtPollBoundary(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(20*time.Millisecond))
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		waiter.Interrupt()
	}()

	start := time.Now()
	err = waiter.Wait(context.Background(), WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrInterrupted)
	require.False(t, errors.Is(err, context.Canceled))
	require.Less(t, time.Since(start), 2*time.Second)

	var ie *InterruptedError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, "pipe", ie.Target)

	// the flag is consumed by the wait that observed it
	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(0),
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaiter_ContextCancel(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	err = waiter.Wait(ctx, WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrInterrupted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaiter_ContextDeadline(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	// the context deadline alone is a valid wakeup strategy
	err = waiter.Wait(ctx, WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaiter_WakeupBlocksForever(t *testing.T) {
	r, _ := newPipe(t)

	rec := &recorder{}
	waiter, err := NewWaiter(int(r.Fd()), "pipe",
		WithPollPeriod(0),
		WithWakeup(),
		WithObserver(rec.observe),
	)
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close() })

	go func() {
		time.Sleep(20 * time.Millisecond)
		waiter.Interrupt()
	}()

	err = waiter.Wait(context.Background(), WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrInterrupted)
	require.True(t, rec.iterations[0].Instruction.Forever())
	require.Equal(t, OutcomeWakeup, rec.iterations[0].Outcome)
}

func TestWaiter_WakeupOnContextCancel(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(0), WithWakeup())
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = waiter.Wait(ctx, WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaiter_InvalidArguments(t *testing.T) {
	_, err := NewWaiter(-1, "bad")
	require.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = NewWaiter(0, "stdin", WithPollPeriod(time.Microsecond))
	require.ErrorIs(t, err, ErrInvalidPollPeriod)

	r, _ := newPipe(t)
	waiter, err := NewWaiter(int(r.Fd()), "pipe")
	require.NoError(t, err)
	err = waiter.Wait(context.Background(), WaitRequest{Op: "noop"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPollTimeout(t *testing.T) {
	tests := []struct {
		instr WaitInstruction
		want  int
	}{
		{BlockForever(), -1},
		{WaitFor(0), 0},
		{WaitFor(1), 1},
		{WaitFor(1_000), 1},
		{WaitFor(2_500_001), 2_501},
		{WaitFor(math.MaxInt64 / 2), math.MaxInt32},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, pollTimeout(tt.instr), "instruction %v", tt.instr)
	}
}

// steppedClock returns its readings in order and then repeats the last one
func steppedClock(readings ...Instant) ClockFunc {
	var i int
	return func() Instant {
		now := readings[min(i, len(readings)-1)]
		i++
		return now
	}
}

func TestWaiter_ClockDrivesDeadline(t *testing.T) {
	r, _ := newPipe(t)

	rec := &recorder{}
	waiter, err := NewWaiter(int(r.Fd()), "pipe",
		WithPollPeriod(10*time.Millisecond),
		WithClock(steppedClock(1_000_000, 1_050_000, 1_150_000)),
		WithObserver(rec.observe),
	)
	require.NoError(t, err)

	deadline := DeadlineAt(1_100_000)
	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "ReadByte",
		Events:   EventReadable,
		Deadline: deadline,
		Timeout:  100 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrTimeout)
	require.Len(t, rec.iterations, 2)

	// 100ms of budget left, so the 10ms poll period bounds the first wait
	first := rec.iterations[0]
	require.Equal(t, OutcomePending, first.Outcome)
	require.Equal(t, Instant(1_000_000), first.Now)
	require.Equal(t, deadline, first.Deadline)
	require.False(t, first.Instruction.Forever())
	require.Equal(t, int64(10_000), first.Instruction.Micros())
	require.NoError(t, first.Err)

	// the clock has jumped past the deadline: one non-sleeping check, then timeout
	second := rec.iterations[1]
	require.Equal(t, OutcomeTimedOut, second.Outcome)
	require.Equal(t, Instant(1_150_000), second.Now)
	require.False(t, second.Instruction.Forever())
	require.Equal(t, int64(0), second.Instruction.Micros())
	require.ErrorIs(t, second.Err, ErrTimeout)
	require.Equal(t, first.Seq+1, second.Seq)
}

func TestWaiter_HighDescriptor(t *testing.T) {
	r, w := newPipe(t)

	const fd = 1500
	if err := unix.Dup3(int(r.Fd()), fd, unix.O_CLOEXEC); err != nil {
		t.Skipf("cannot dup to fd %d: %v", fd, err)
	}
	t.Cleanup(func() { unix.Close(fd) })

	waiter, err := NewWaiter(fd, "high", WithPollPeriod(5*time.Millisecond), WithWakeup())
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close() })

	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(10 * time.Millisecond),
	})
	require.ErrorIs(t, err, ErrTimeout)

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	err = waiter.Wait(context.Background(), WaitRequest{
		Op:       "read",
		Events:   EventReadable,
		Deadline: waiter.DeadlineAfter(time.Second),
	})
	require.NoError(t, err)
}

func TestWaiter_ConcurrentWakeups(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithPollPeriod(0), WithWakeup())
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close() })

	wait := func(ctx context.Context) <-chan error {
		done := make(chan error, 1)
		go func() {
			done <- waiter.Wait(ctx, WaitRequest{Op: "read", Events: EventReadable})
		}()
		return done
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	doneA := wait(ctxA)
	doneB := wait(ctxB)

	time.Sleep(20 * time.Millisecond)
	cancelA()
	select {
	case err := <-doneA:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled wait was not woken")
	}

	// the other wait keeps blocking until its own context ends
	select {
	case err := <-doneB:
		t.Fatalf("unrelated wait returned: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	cancelB()
	select {
	case err := <-doneB:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("second wait was not woken")
	}
}

func TestWaiter_WaitAfterClose(t *testing.T) {
	r, _ := newPipe(t)

	waiter, err := NewWaiter(int(r.Fd()), "pipe", WithWakeup())
	require.NoError(t, err)
	require.NoError(t, waiter.Close())
	require.NoError(t, waiter.Close())

	err = waiter.Wait(context.Background(), WaitRequest{Op: "read", Events: EventReadable})
	require.ErrorIs(t, err, ErrClosed)
}
