package components

import (
	"strconv"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/colors"
	"github.com/allbin/go-serialwait/internal/tui/styles"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// IterationMsg reports one pass through the wait loop
type IterationMsg struct {
	Iteration serialwait.Iteration
}

type ViewMode int

const (
	ViewModeFollow ViewMode = iota
	ViewModeVisual
)

// IterationTable lists recent wait iterations
type IterationTable struct {
	table      table.Model
	viewMode   ViewMode
	iterations []serialwait.Iteration
}

func NewIterationTable(width, height int) *IterationTable {
	// Ensure minimum dimensions for proper table initialization
	if width < 80 {
		width = 80
	}
	if height < 5 {
		height = 5
	}

	t := table.New(
		table.WithColumns(iterationColumns(width)),
		table.WithFocused(false), // Start unfocused in follow mode
		table.WithHeight(height),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colors.Subtext0).
		BorderBottom(true).
		Bold(true).
		Foreground(colors.Text)
	s.Selected = s.Selected.
		Foreground(colors.Text).
		Background(colors.Surface1).
		Bold(false)
	t.SetStyles(s)

	return &IterationTable{
		table:      t,
		viewMode:   ViewModeFollow,
		iterations: make([]serialwait.Iteration, 0),
	}
}

func iterationColumns(width int) []table.Column {
	if width < 80 {
		width = 80
	}

	seqWidth := 7
	opWidth := 12
	waitWidth := 16
	outcomeWidth := 12

	// Account for borders and separators
	deadlineWidth := width - seqWidth - opWidth - waitWidth - outcomeWidth - 12
	if deadlineWidth < 16 {
		deadlineWidth = 16
	}

	return []table.Column{
		{Title: "#", Width: seqWidth},
		{Title: "Op", Width: opWidth},
		{Title: "Wait", Width: waitWidth},
		{Title: "Outcome", Width: outcomeWidth},
		{Title: "Deadline", Width: deadlineWidth},
	}
}

func (it *IterationTable) SetSize(width, height int) {
	it.table.SetColumns(iterationColumns(width))
	it.table.SetHeight(height)
	it.table.SetWidth(width)
	it.table.UpdateViewport()
}

// SetIterations replaces the table contents
func (it *IterationTable) SetIterations(iterations []serialwait.Iteration) {
	it.iterations = iterations

	rows := make([]table.Row, len(iterations))
	for i, iter := range iterations {
		rows[i] = FormatIterationRow(iter)
	}
	it.table.SetRows(rows)
	it.table.UpdateViewport()

	if it.viewMode == ViewModeFollow {
		it.table.GotoBottom()
	}
}

// FormatIterationRow renders one iteration as table cells
func FormatIterationRow(iter serialwait.Iteration) table.Row {
	deadline := iter.Deadline.String()
	if at, ok := iter.Deadline.At(); ok {
		deadline = iter.Now.Sub(at).String() + " past"
		if at > iter.Now {
			deadline = at.Sub(iter.Now).String() + " left"
		}
	}

	return table.Row{
		strconv.FormatUint(iter.Seq, 10),
		iter.Op,
		iter.Instruction.String(),
		styles.OutcomeStyle(iter.Outcome).Render(iter.Outcome.String()),
		deadline,
	}
}

func (it *IterationTable) Clear() {
	it.iterations = make([]serialwait.Iteration, 0)
	it.table.SetRows([]table.Row{})
}

func (it *IterationTable) Len() int { return len(it.iterations) }

func (it *IterationTable) GetViewMode() ViewMode {
	return it.viewMode
}

func (it *IterationTable) SetViewMode(mode ViewMode) {
	it.viewMode = mode
	if mode == ViewModeFollow {
		if len(it.iterations) > 0 {
			it.table.SetCursor(len(it.iterations) - 1)
		}
		it.table.GotoBottom()
		it.table.Blur()
	} else {
		it.table.Focus()
	}
	it.table.UpdateViewport()
}

func (it *IterationTable) GotoTop()    { it.table.GotoTop() }
func (it *IterationTable) GotoBottom() { it.table.GotoBottom() }

// MoveUp moves the cursor up, leaving follow mode so the row stays selected
func (it *IterationTable) MoveUp() {
	if it.viewMode == ViewModeFollow {
		it.SetViewMode(ViewModeVisual)
	}
	it.table.MoveUp(1)
}

// MoveDown moves the cursor down, leaving follow mode like MoveUp
func (it *IterationTable) MoveDown() {
	if it.viewMode == ViewModeFollow {
		it.SetViewMode(ViewModeVisual)
	}
	it.table.MoveDown(1)
}

// Cursor returns the index of the selected row
func (it *IterationTable) Cursor() int { return it.table.Cursor() }

func (it *IterationTable) Init() tea.Cmd {
	return nil
}

func (it *IterationTable) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Only allow table navigation in visual mode
	if it.viewMode == ViewModeVisual {
		it.table, cmd = it.table.Update(msg)
	}

	return it, cmd
}

func (it *IterationTable) View() string {
	return it.table.View()
}

func (it *IterationTable) GetViewModeString() string {
	switch it.viewMode {
	case ViewModeVisual:
		return "VISUAL"
	default:
		return "FOLLOW"
	}
}
