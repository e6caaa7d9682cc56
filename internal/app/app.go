package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/feedwatch/feedwatch/internal/theme"
	"github.com/feedwatch/feedwatch/internal/views/debug"
	"github.com/feedwatch/feedwatch/internal/views/help"
	"github.com/feedwatch/feedwatch/internal/views/messages"
	"github.com/feedwatch/feedwatch/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayDebug
)

// Controller is the part of stream.Controller the UI drives.
type Controller interface {
	Toggle() error
	ClearMessages()
	VisibilityRegained()
	Connect() error
	Close()
}

// Options configures the root model.
type Options struct {
	URL         string
	AutoConnect bool
	MaxMessages int
	Logger      *zerolog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl   Controller
	bridge *Bridge
	ctx    context.Context
	cancel context.CancelFunc
	log    *zerolog.Logger

	url         string
	autoConnect bool

	keys    KeyMap
	width   int
	height  int
	overlay Overlay

	// Sub-views.
	statusBar status.Model
	list      messages.Model
	debugLog  debug.Model
}

// New creates the root model. bridge must be the stream.View the
// controller was built with.
func New(ctrl Controller, bridge *Bridge, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return Model{
		ctrl:        ctrl,
		bridge:      bridge,
		ctx:         ctx,
		cancel:      cancel,
		log:         logger,
		url:         opts.URL,
		autoConnect: opts.AutoConnect,
		keys:        DefaultKeyMap(),
		statusBar:   status.New(opts.URL),
		list:        messages.New(opts.MaxMessages),
		debugLog:    debug.New(),
	}
}

// Init starts draining view events and connects when auto-connect is on.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.Wait(m.ctx)}
	if m.autoConnect {
		cmds = append(cmds, m.connectCmd())
	}
	return tea.Batch(cmds...)
}

type connectErrMsg struct{ err error }

func (m Model) connectCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Connect(); err != nil {
			return connectErrMsg{err: err}
		}
		return nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.SetSize(msg.Width, m.listHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		m.debugLog.Add(debug.KindUser, "terminal focus regained")
		m.ctrl.VisibilityRegained()
		return m, nil

	case tea.BlurMsg:
		m.debugLog.Add(debug.KindUser, "terminal focus lost")
		return m, nil

	case BatchMsg:
		cmds := []tea.Cmd{m.bridge.Wait(m.ctx)}
		for _, ev := range msg {
			if cmd := m.apply(ev); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case messages.FrameMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case connectErrMsg:
		m.debugLog.Add(debug.KindErr, msg.err.Error())
		return m, nil
	}

	return m, nil
}

// apply folds one view event into the sub-views.
func (m *Model) apply(ev tea.Msg) tea.Cmd {
	switch ev := ev.(type) {
	case StatusMsg:
		if ev.Label != m.statusBar.Label || ev.Connected != m.statusBar.Connected {
			m.debugLog.Add(debug.KindConn, ev.Label)
		}
		m.statusBar.Label = ev.Label
		m.statusBar.Connected = ev.Connected
		m.list.Connected = ev.Connected
	case MessageMsg:
		m.debugLog.Addf(debug.KindFeed, "message #%d", ev.Message.ID)
		return m.list.Append(ev.Message)
	case CountMsg:
		m.statusBar.Count = ev.Count
	case ElapsedMsg:
		m.statusBar.Elapsed = ev.Elapsed
	case ClearMsg:
		m.list.Clear()
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape),
			m.overlay == OverlayHelp && key.Matches(msg, m.keys.Help),
			m.overlay == OverlayDebug && key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		m.debugLog.Add(debug.KindUser, "toggle connection")
		if err := m.ctrl.Toggle(); err != nil {
			m.log.Error().Err(err).Msg("connect failed")
			m.debugLog.Add(debug.KindErr, err.Error())
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.debugLog.Add(debug.KindUser, "clear messages")
		m.ctrl.ClearMessages()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.list.ScrollUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.list.ScrollDown(1)
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.list.ScrollDown(m.list.Len())
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.ctrl.Close()
	return m, tea.Quit
}

// statusBarHeight is the double-bordered single-line bar.
const statusBarHeight = 3

func (m Model) listHeight() int {
	return m.height - statusBarHeight - 1
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayHelp:
		body = help.View(m.width, m.url, m.keys.Bindings())
	case OverlayDebug:
		body = m.debugLog.View(m.width, m.listHeight())
	default:
		body = m.list.View()
	}

	action := "c:connect"
	if m.statusBar.Connected {
		action = "c:disconnect"
	}
	footer := theme.StyleDimmed.Render(fmt.Sprintf("  %s  x:clear  j/k:scroll  ?:help  d:events  q:quit", action))

	sections := []string{
		m.statusBar.View(),
		body,
		footer,
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
