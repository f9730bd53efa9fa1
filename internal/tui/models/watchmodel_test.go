package models

import (
	"testing"

	"github.com/allbin/go-serialwait"
)

func TestWatchModelBoundedHistory(t *testing.T) {
	m := NewWatchModel("/dev/null", 3)

	for seq := uint64(1); seq <= 5; seq++ {
		if !m.AddIteration(serialwait.Iteration{Seq: seq, Outcome: serialwait.OutcomePending}) {
			t.Fatalf("AddIteration(%d) reported no change", seq)
		}
	}

	got := m.Iterations()
	if len(got) != 3 {
		t.Fatalf("Expected 3 retained iterations, got %d", len(got))
	}
	for i, want := range []uint64{3, 4, 5} {
		if got[i].Seq != want {
			t.Errorf("Iterations()[%d].Seq = %d, want %d", i, got[i].Seq, want)
		}
	}

	if s := m.Stats(); s.Iterations != 5 || s.Pending != 5 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

func TestWatchModelStats(t *testing.T) {
	m := NewWatchModel("/dev/null", 0)

	outcomes := []serialwait.Outcome{
		serialwait.OutcomePending,
		serialwait.OutcomeReady,
		serialwait.OutcomeTimedOut,
		serialwait.OutcomeInterrupted,
		serialwait.OutcomeWakeup,
		serialwait.OutcomeReady,
	}
	for _, o := range outcomes {
		m.AddIteration(serialwait.Iteration{Outcome: o})
	}
	m.AddBytes(7)

	s := m.Stats()
	if s.Iterations != 6 || s.Ready != 2 || s.Pending != 1 || s.TimedOut != 1 || s.Interrupted != 1 {
		t.Errorf("Unexpected stats: %+v", s)
	}
	if s.Bytes != 7 {
		t.Errorf("Bytes = %d, want 7", s.Bytes)
	}
}

func TestWatchModelPause(t *testing.T) {
	m := NewWatchModel("/dev/null", 10)

	m.AddIteration(serialwait.Iteration{Seq: 1})
	if !m.TogglePaused() {
		t.Fatal("Expected paused after first toggle")
	}
	if m.AddIteration(serialwait.Iteration{Seq: 2}) {
		t.Error("Paused model must not change history")
	}
	if n := len(m.Iterations()); n != 1 {
		t.Errorf("Expected 1 retained iteration while paused, got %d", n)
	}
	if m.Stats().Iterations != 2 {
		t.Error("Counters must keep running while paused")
	}

	m.TogglePaused()
	m.ClearHistory()
	if n := len(m.Iterations()); n != 0 {
		t.Errorf("Expected empty history after clear, got %d", n)
	}
}

func TestWatchModelCleanupWithoutStream(t *testing.T) {
	m := NewWatchModel("/dev/null", 0)
	m.Interrupt()
	m.Cleanup()

	if m.GetContext().Err() == nil {
		t.Error("Expected context cancelled after Cleanup")
	}
}
