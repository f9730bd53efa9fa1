package styles

import (
	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(colors.Subtext0)

	ValueStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			Bold(true)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	// Info styles
	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve)

	outcomePending     = lipgloss.NewStyle().Foreground(colors.Subtext1)
	outcomeReady       = lipgloss.NewStyle().Foreground(colors.Green).Bold(true)
	outcomeTimedOut    = lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true)
	outcomeInterrupted = lipgloss.NewStyle().Foreground(colors.Peach).Bold(true)
	outcomeWakeup      = lipgloss.NewStyle().Foreground(colors.Teal)
	outcomeError       = lipgloss.NewStyle().Foreground(colors.Red).Bold(true)
)

// OutcomeStyle returns the style used to render an iteration outcome
func OutcomeStyle(outcome serialwait.Outcome) lipgloss.Style {
	switch outcome {
	case serialwait.OutcomePending, serialwait.OutcomeSignal:
		return outcomePending
	case serialwait.OutcomeReady:
		return outcomeReady
	case serialwait.OutcomeTimedOut:
		return outcomeTimedOut
	case serialwait.OutcomeInterrupted:
		return outcomeInterrupted
	case serialwait.OutcomeWakeup:
		return outcomeWakeup
	default:
		return outcomeError
	}
}
