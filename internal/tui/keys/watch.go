package keys

import "github.com/charmbracelet/bubbles/key"

// WatchKeys adds wait-loop control and table navigation to the terminal keys
type WatchKeys struct {
	TerminalKeys
	Pause      key.Binding
	Interrupt  key.Binding
	VisualMode key.Binding
	Up         key.Binding
	Down       key.Binding
	GotoTop    key.Binding
	GotoBottom key.Binding
}

func NewWatchKeys() WatchKeys {
	return WatchKeys{
		TerminalKeys: NewTerminalKeys(),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause table"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("i", "I"),
			key.WithHelp("i", "interrupt wait"),
		),
		VisualMode: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "visual mode"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "goto top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "goto bottom"),
		),
	}
}

func (k WatchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Interrupt, k.Pause, k.VisualMode, k.Quit}
}

func (k WatchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Interrupt, k.Pause, k.Clear},
		{k.VisualMode, k.Escape, k.ToggleHex, k.ToggleASCII},
		{k.GotoTop, k.GotoBottom, k.Up, k.Down},
		{k.Help, k.Quit},
	}
}
