package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DataPane shows the bytes read so far, newest at the bottom
type DataPane struct {
	viewport  viewport.Model
	formatter *DataFormatter
	rawData   []DataReceivedMsg
	maxLines  int
}

func NewDataPane(width, height, maxLines int) *DataPane {
	return &DataPane{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(true, true), // Default: show both hex and ASCII
		rawData:   make([]DataReceivedMsg, 0),
		maxLines:  maxLines,
	}
}

func (d *DataPane) SetSize(width, height int) {
	d.viewport.Width = width
	d.viewport.Height = height
}

func (d *DataPane) AddMessage(msg DataReceivedMsg) {
	d.rawData = append(d.rawData, msg)
	if d.maxLines > 0 && len(d.rawData) > d.maxLines {
		d.rawData = d.rawData[len(d.rawData)-d.maxLines:]
	}
	d.refresh()
}

func (d *DataPane) Len() int { return len(d.rawData) }

func (d *DataPane) refresh() {
	d.viewport.SetContent(strings.Join(d.formatter.FormatMessages(d.rawData), "\n"))
	d.viewport.GotoBottom()
}

func (d *DataPane) Clear() {
	d.rawData = make([]DataReceivedMsg, 0)
	d.viewport.SetContent("")
}

func (d *DataPane) ToggleHex() {
	d.formatter.ToggleHex()
	d.refresh()
}

func (d *DataPane) ToggleASCII() {
	d.formatter.ToggleASCII()
	d.refresh()
}

func (d *DataPane) GetDisplayMode() DisplayMode {
	return d.formatter.GetDisplayMode()
}

func (d *DataPane) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only pass certain message types to viewport to prevent it from consuming our key bindings
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return d.viewport.Update(msg)
	default:
		return d.viewport, nil
	}
}

func (d *DataPane) View() string {
	return d.viewport.View()
}
