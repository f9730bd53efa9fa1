package models

import (
	"context"
	"sync"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/components"
	"github.com/eapache/queue"
)

// DefaultHistoryLimit bounds the number of iterations kept for display
const DefaultHistoryLimit = 1000

type WatchModel struct {
	stream *serialwait.Stream
	path   string

	// State
	err    error
	ready  bool
	paused bool

	// Bounded FIFO of serialwait.Iteration, oldest first
	history *queue.Queue
	limit   int
	stats   components.Stats

	// Cancellation and synchronization
	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewWatchModel(path string, limit int) *WatchModel {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WatchModel{
		path:    path,
		history: queue.New(),
		limit:   limit,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m *WatchModel) GetStream() *serialwait.Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stream
}

func (m *WatchModel) SetStream(stream *serialwait.Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream = stream
}

func (m *WatchModel) GetPath() string {
	return m.path
}

func (m *WatchModel) GetError() error {
	return m.err
}

func (m *WatchModel) SetError(err error) {
	m.err = err
}

func (m *WatchModel) IsReady() bool {
	return m.ready
}

func (m *WatchModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *WatchModel) IsPaused() bool {
	return m.paused
}

func (m *WatchModel) TogglePaused() bool {
	m.paused = !m.paused
	return m.paused
}

// AddIteration records an iteration in the counters and, unless paused, in
// the history. It reports whether the history changed.
func (m *WatchModel) AddIteration(it serialwait.Iteration) bool {
	m.stats.Iterations++
	switch it.Outcome {
	case serialwait.OutcomeReady:
		m.stats.Ready++
	case serialwait.OutcomePending:
		m.stats.Pending++
	case serialwait.OutcomeTimedOut:
		m.stats.TimedOut++
	case serialwait.OutcomeInterrupted:
		m.stats.Interrupted++
	}

	if m.paused {
		return false
	}

	m.history.Add(it)
	for m.history.Length() > m.limit {
		m.history.Remove()
	}
	return true
}

func (m *WatchModel) AddBytes(n int) {
	m.stats.Bytes += uint64(n)
}

// Iterations returns the retained history, oldest first
func (m *WatchModel) Iterations() []serialwait.Iteration {
	out := make([]serialwait.Iteration, m.history.Length())
	for i := range out {
		out[i] = m.history.Get(i).(serialwait.Iteration)
	}
	return out
}

func (m *WatchModel) Stats() components.Stats {
	return m.stats
}

func (m *WatchModel) ClearHistory() {
	m.history = queue.New()
}

func (m *WatchModel) GetContext() context.Context {
	return m.ctx
}

// Interrupt interrupts the wait currently blocking the reader, if any
func (m *WatchModel) Interrupt() {
	if s := m.GetStream(); s != nil {
		s.Interrupt()
	}
}

// Cleanup stops the reader: the context wakes waits bounded by it and the
// interrupt catches one running under a plain timeout
func (m *WatchModel) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}
	m.Interrupt()
}
