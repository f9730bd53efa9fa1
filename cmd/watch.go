/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/allbin/go-serialwait"
	"github.com/allbin/go-serialwait/internal/tui/components"
	"github.com/allbin/go-serialwait/internal/tui/keys"
	"github.com/allbin/go-serialwait/internal/tui/models"
	"github.com/allbin/go-serialwait/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watch the wait loop on a device in a terminal UI",
	Long: `Open an already configured device, pty or FIFO and show every iteration
of the wait loop as data is read.

The upper pane lists iterations: the computed instruction, its outcome and
the time left before the deadline. The lower pane shows the data received.
Press i to interrupt the current wait, p to pause the table.

Example usage:
  serialwait watch /dev/ttyUSB0
  serialwait watch /dev/pts/3 --poll-period 250ms --timeout 2s
  serialwait watch /dev/ttyACM0 --history 200`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history, _ := cmd.Flags().GetInt("history")

		if err := runWatchTUI(args[0], history); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Int("history", models.DefaultHistoryLimit, "Number of iterations kept in the table")
}

// watchModel represents the Bubble Tea model for the watch command
type watchModel struct {
	*models.WatchModel
	iterations *components.IterationTable
	data       *components.DataPane
	statusBar  *components.StatusBar
	help       help.Model
	keys       keys.WatchKeys
}

type tickMsg time.Time

type readErrorMsg struct {
	err error
}

func newWatchModel(path string, history int, info *components.WaitInfo) *watchModel {
	m := &watchModel{
		WatchModel: models.NewWatchModel(path, history),
		iterations: components.NewIterationTable(0, 0), // Will be properly sized by WindowSizeMsg
		data:       components.NewDataPane(0, 0, history),
		statusBar:  components.NewStatusBar(path),
		help:       help.New(),
		keys:       keys.NewWatchKeys(),
	}
	m.statusBar.SetWaitInfo(info)
	return m
}

func runWatchTUI(path string, history int) error {
	opts := waitOptions(v, logger)
	config := serialwait.DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return err
		}
	}

	m := newWatchModel(path, history, &components.WaitInfo{
		PollPeriod: config.PollPeriod,
		Timeout:    config.Timeout,
		HasTimeout: config.HasTimeout,
		Wakeup:     true,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		f, err := openDevice(path)
		if err != nil {
			p.Send(components.StreamOpenedMsg{Err: err})
			return
		}

		opts := append(opts,
			serialwait.WithWakeup(),
			serialwait.WithObserver(func(it serialwait.Iteration) {
				p.Send(components.IterationMsg{Iteration: it})
			}),
		)
		stream, err := serialwait.NewStream(f, opts...)
		if err != nil {
			f.Close()
			p.Send(components.StreamOpenedMsg{Err: err})
			return
		}
		m.SetStream(stream)
		p.Send(components.StreamOpenedMsg{})

		readLoop(m.WatchModel, stream, p)
	}()

	_, err := p.Run()

	m.Cleanup()
	return err
}

// readLoop feeds the program until the model is cleaned up or the stream
// reaches end of file. It owns the stream and closes it on return.
func readLoop(m *models.WatchModel, stream *serialwait.Stream, p *tea.Program) {
	defer stream.Close()

	ctx := m.GetContext()
	buffer := make([]byte, 1024)
	for {
		var n int
		var err error
		if _, ok := stream.Timeout(); ok {
			n, err = stream.Read(buffer)
		} else {
			n, err = stream.ReadContext(ctx, buffer)
		}

		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])
			p.Send(components.DataReceivedMsg{Timestamp: time.Now(), Data: data})
		}

		switch {
		case err == nil,
			errors.Is(err, serialwait.ErrTimeout),
			errors.Is(err, serialwait.ErrInterrupted):
			// the iteration table already shows these
		default:
			p.Send(readErrorMsg{err: err})
			return
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *watchModel) Init() tea.Cmd {
	return tick()
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.SetReady(true)

	case tickMsg:
		return m, tick()

	case components.StreamOpenedMsg:
		if msg.Err != nil {
			m.SetError(msg.Err)
			m.statusBar.SetFailed(msg.Err)
		} else {
			m.statusBar.SetOpened()
		}

	case readErrorMsg:
		m.SetError(msg.err)
		m.statusBar.SetStopped(msg.err)

	case components.IterationMsg:
		if m.AddIteration(msg.Iteration) && m.IsReady() {
			m.iterations.SetIterations(m.Iterations())
		}

	case components.DataReceivedMsg:
		m.AddBytes(len(msg.Data))
		m.data.AddMessage(msg)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Cleanup()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, m.keys.Interrupt):
			m.Interrupt()

		case key.Matches(msg, m.keys.Pause):
			m.TogglePaused()

		case key.Matches(msg, m.keys.Clear):
			m.ClearHistory()
			m.iterations.Clear()
			m.data.Clear()

		case key.Matches(msg, m.keys.ToggleHex):
			m.data.ToggleHex()

		case key.Matches(msg, m.keys.ToggleASCII):
			m.data.ToggleASCII()

		case key.Matches(msg, m.keys.VisualMode):
			m.iterations.SetViewMode(components.ViewModeVisual)

		case key.Matches(msg, m.keys.Escape):
			m.iterations.SetViewMode(components.ViewModeFollow)

		case key.Matches(msg, m.keys.Up):
			m.iterations.MoveUp()

		case key.Matches(msg, m.keys.Down):
			m.iterations.MoveDown()

		case key.Matches(msg, m.keys.GotoTop):
			m.iterations.GotoTop()

		case key.Matches(msg, m.keys.GotoBottom):
			m.iterations.GotoBottom()

		default:
			_, cmd := m.iterations.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *watchModel) resize(width, height int) {
	statusBarHeight := 1
	helpHeight := 1
	available := height - statusBarHeight - helpHeight - 1
	if available < 4 {
		available = 4
	}
	tableHeight := available * 3 / 5
	m.iterations.SetSize(width, tableHeight)
	m.data.SetSize(width, available-tableHeight)
	m.statusBar.SetWidth(width)
	m.help.Width = width
}

func (m *watchModel) View() string {
	if !m.IsReady() {
		return "\n  Initializing..."
	}

	statusBar := m.statusBar.Render(
		m.iterations.GetViewModeString(),
		m.IsPaused(),
		m.Stats(),
		time.Now().Format("15:04:05"),
	)

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.iterations.View(),
		styles.ContentBorderStyle.Render(m.data.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Left, body, statusBar, m.help.View(m.keys))
}
