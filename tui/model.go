package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/njyeung/vlayer/ipc"
)

const (
	pollInterval   = 250 * time.Millisecond
	requestTimeout = time.Second
)

// Controller is the player connection the remote control drives.
// *ipc.Client implements it.
type Controller interface {
	Command(ctx context.Context, args ...string) error
	Property(ctx context.Context, name string) (any, error)
	Events() <-chan string
	Close() error
}

// DialFunc connects to the player's control socket.
type DialFunc func(socket string) (Controller, error)

// DialIPC dials with ipc.Dial.
func DialIPC(socket string) (Controller, error) {
	return ipc.Dial(socket)
}

// Status is a snapshot of the player's properties.
type Status struct {
	Path     string
	Pos      float64
	Duration float64
	Volume   float64
	Paused   bool
	Muted    bool
	Idle     bool
	Drops    int64
}

// Messages
type (
	connectedMsg struct{ c Controller }
	errorMsg     struct{ err error }
	commandMsg   struct{ err error }
	statusMsg    Status
	tickMsg      time.Time
	eventMsg     string
	closedMsg    struct{}
)

type state int

const (
	stateConnecting state = iota
	stateConnected
	stateClosed
	stateError
)

// Model is the Bubble Tea model
type Model struct {
	state  state
	socket string
	dial   DialFunc
	client Controller

	width    int
	height   int
	spinner  spinner.Model
	progress progress.Model
	help     help.Model

	status    Status
	lastEvent string
	notice    string
	err       error
}

// NewModel returns a remote control for the player listening on socket.
func NewModel(socket string, dial DialFunc) Model {
	if dial == nil {
		dial = DialIPC
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		state:    stateConnecting,
		socket:   socket,
		dial:     dial,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:     help.New(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.connect,
	)
}

func (m Model) connect() tea.Msg {
	c, err := m.dial(m.socket)
	if err != nil {
		return errorMsg{err}
	}
	return connectedMsg{c}
}

func (m Model) listenForEvents() tea.Msg {
	ev, ok := <-m.client.Events()
	if !ok {
		return closedMsg{}
	}
	return eventMsg(ev)
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// fetchStatus reads every property the view shows. Properties that are
// unavailable while the player is idle are left zero.
func (m Model) fetchStatus() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var st Status
	for _, p := range []struct {
		name string
		set  func(any)
	}{
		{"pause", func(v any) { st.Paused, _ = v.(bool) }},
		{"mute", func(v any) { st.Muted, _ = v.(bool) }},
		{"volume", func(v any) { st.Volume, _ = v.(float64) }},
		{"idle-active", func(v any) { st.Idle, _ = v.(bool) }},
		{"frame-drop-count", func(v any) { f, _ := v.(float64); st.Drops = int64(f) }},
		{"path", func(v any) { st.Path, _ = v.(string) }},
		{"time-pos", func(v any) { st.Pos, _ = v.(float64) }},
		{"duration", func(v any) { st.Duration, _ = v.(float64) }},
	} {
		v, err := m.client.Property(ctx, p.name)
		switch {
		case err == nil:
			p.set(v)
		case errors.Is(err, ipc.ErrClosed):
			return closedMsg{}
		case errors.Is(err, ipc.ErrCommand):
		default:
			return errorMsg{err}
		}
	}
	return statusMsg(st)
}

func (m Model) command(args ...string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := c.Command(ctx, args...)
		if errors.Is(err, ipc.ErrClosed) {
			return closedMsg{}
		}
		return commandMsg{err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Exit) {
			m.close()
			return m, tea.Quit
		}
		if m.state == stateConnected {
			return m.updateConnected(msg)
		}
		if msg.String() == "q" {
			m.close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-6, 10), 80)
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectedMsg:
		m.client = msg.c
		m.state = stateConnected
		return m, tea.Batch(
			m.fetchStatus,
			m.listenForEvents,
			tick(),
		)

	case tickMsg:
		if m.state != stateConnected {
			return m, nil
		}
		return m, tea.Batch(m.fetchStatus, tick())

	case statusMsg:
		m.status = Status(msg)
		return m, nil

	case eventMsg:
		m.lastEvent = string(msg)
		return m, m.listenForEvents

	case commandMsg:
		m.notice = ""
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, m.fetchStatus

	case closedMsg:
		m.state = stateClosed
		m.close()
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateConnected(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Pause):
		return m, m.command("cycle", "pause")
	case key.Matches(msg, keys.Mute):
		return m, m.command("cycle", "mute")
	case key.Matches(msg, keys.VolDown):
		return m, m.command("add", "volume", "-10")
	case key.Matches(msg, keys.VolUp):
		return m, m.command("add", "volume", "10")
	case key.Matches(msg, keys.Stop):
		return m, m.command("stop")
	case key.Matches(msg, keys.QuitPlay):
		return m, m.command("quit")
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) close() {
	if m.client != nil {
		m.client.Close()
	}
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case stateConnecting:
		return m.viewConnecting()
	case stateError:
		return m.viewError()
	case stateClosed:
		return "Player exited.\n"
	case stateConnected:
		return m.viewPlaying()
	default:
		return ""
	}
}

// formatClock formats seconds as HH:MM:SS.
func formatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int64(sec)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
