package components

import (
	"fmt"
	"time"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/colors"
	"github.com/allbin/go-serialwait/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// StreamOpenedMsg reports the outcome of opening the watched path
type StreamOpenedMsg struct {
	Err error
}

// WaitInfo describes the wait configuration shown in the status bar
type WaitInfo struct {
	PollPeriod time.Duration
	Timeout    time.Duration
	HasTimeout bool
	Wakeup     bool
}

// Stats counts iteration outcomes
type Stats struct {
	Iterations  uint64
	Ready       uint64
	Pending     uint64
	TimedOut    uint64
	Interrupted uint64
	Bytes       uint64
}

type StatusBar struct {
	path     string
	status   string
	err      error
	width    int
	open     bool
	waitInfo *WaitInfo
}

func NewStatusBar(path string) *StatusBar {
	return &StatusBar{
		path:   path,
		status: "Opening...",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetWaitInfo(info *WaitInfo) {
	sb.waitInfo = info
}

func (sb *StatusBar) SetOpened() {
	sb.status = "Waiting for data..."
	sb.err = nil
	sb.open = true
}

func (sb *StatusBar) SetFailed(err error) {
	sb.status = fmt.Sprintf("Open failed: %v", err)
	sb.err = err
	sb.open = false
}

func (sb *StatusBar) SetStopped(err error) {
	sb.status = fmt.Sprintf("Stopped: %v", err)
	sb.err = err
	sb.open = false
}

// Status returns the current status text
func (sb *StatusBar) Status() string { return sb.status }

// Describe renders the wait configuration as plain text
func (info *WaitInfo) Describe() string {
	poll := "poll off"
	if info.PollPeriod > 0 {
		poll = fmt.Sprintf("poll %v", info.PollPeriod)
	}
	timeout := "no timeout"
	if info.HasTimeout {
		timeout = fmt.Sprintf("timeout %v", info.Timeout)
	}
	s := poll + " " + timeout
	if info.Wakeup {
		s += " wakeup"
	}
	return s
}

// Render draws the status bar: mode, path, state indicator, counters and
// wait configuration.
func (sb *StatusBar) Render(viewMode string, paused bool, stats Stats, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeBackground := colors.Blue
	if viewMode == "VISUAL" {
		modeBackground = colors.Mauve
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeBackground).
		Bold(true).
		Padding(0, 1).
		Render(viewMode)

	path := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.path)

	var indicatorStyle lipgloss.Style
	var indicator string
	switch {
	case sb.err != nil:
		indicatorStyle = lipgloss.NewStyle().Foreground(colors.Red)
		indicator = "✗"
	case sb.open:
		indicatorStyle = lipgloss.NewStyle().Foreground(colors.Green)
		indicator = "●"
	default:
		indicatorStyle = lipgloss.NewStyle().Foreground(colors.Yellow)
		indicator = "○"
	}
	state := indicatorStyle.Render(indicator)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	var pausedInfo string
	if paused {
		pausedInfo = lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render("[PAUSED]")
	}

	counters := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(fmt.Sprintf("%d it  %s %d  %s %d  %s %d  %dB",
			stats.Iterations,
			styles.OutcomeStyle(serialwait.OutcomeReady).Render("rdy"), stats.Ready,
			styles.OutcomeStyle(serialwait.OutcomeTimedOut).Render("tmo"), stats.TimedOut,
			styles.OutcomeStyle(serialwait.OutcomeInterrupted).Render("int"), stats.Interrupted,
			stats.Bytes))

	var waitDetails string
	if sb.waitInfo != nil {
		waitDetails = lipgloss.NewStyle().
			Foreground(colors.Subtext0).
			Padding(0, 1).
			Render("⏱ " + sb.waitInfo.Describe())
	}

	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, path, state, pausedInfo, divider, counters)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, waitDetails, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	return statusBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
