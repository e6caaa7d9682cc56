// Package messages renders the scrolling message list.
package messages

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/theme"
)

const (
	fps             = 60
	springFrequency = 6.0
	springDamping   = 1.0
)

// FrameMsg advances the auto-scroll animation by one frame.
type FrameMsg struct{}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// Model holds the retained messages and the viewport showing them.
type Model struct {
	Connected bool

	items []feed.Message
	limit int
	loc   *time.Location
	vp    viewport.Model

	spring    harmonica.Spring
	pos, vel  float64
	animating bool
	// follow keeps the list pinned to the newest message until the user
	// scrolls away from the bottom.
	follow bool
}

// New creates an empty list retaining at most limit messages (0 = unlimited).
func New(limit int) Model {
	return Model{
		limit:  limit,
		loc:    time.Local,
		vp:     viewport.New(0, 0),
		spring: harmonica.NewSpring(harmonica.FPS(fps), springFrequency, springDamping),
		follow: true,
	}
}

// SetLocation sets the zone timestamps are rendered in.
func (m *Model) SetLocation(loc *time.Location) {
	if loc != nil {
		m.loc = loc
		m.refresh()
	}
}

// SetSize resizes the viewport.
func (m *Model) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	m.vp.Width = width
	m.vp.Height = height
	m.refresh()
	if m.follow {
		m.snapToBottom()
	}
}

// Len returns the number of retained messages.
func (m Model) Len() int {
	return len(m.items)
}

// Append adds a message, dropping the oldest past the retention cap, and
// returns the animation command when the list starts scrolling.
func (m *Model) Append(msg feed.Message) tea.Cmd {
	m.items = append(m.items, msg)
	if m.limit > 0 && len(m.items) > m.limit {
		dropped := len(m.items) - m.limit
		m.items = m.items[dropped:]
		// Keep the visible window on the same messages.
		m.pos = math.Max(0, m.pos-float64(dropped))
		m.vp.SetYOffset(int(math.Round(m.pos)))
	}
	m.refresh()

	if !m.follow || m.animating || m.target() == m.pos {
		return nil
	}
	m.animating = true
	return frame()
}

// Clear drops every retained message.
func (m *Model) Clear() {
	m.items = nil
	m.pos, m.vel = 0, 0
	m.animating = false
	m.follow = true
	m.refresh()
	m.vp.GotoTop()
}

// ScrollUp moves the view towards older messages and stops following.
func (m *Model) ScrollUp(n int) {
	m.scrollTo(m.vp.YOffset - n)
}

// ScrollDown moves the view towards newer messages; reaching the bottom
// resumes following.
func (m *Model) ScrollDown(n int) {
	m.scrollTo(m.vp.YOffset + n)
}

// Following reports whether new messages scroll into view automatically.
func (m Model) Following() bool {
	return m.follow
}

func (m *Model) scrollTo(offset int) {
	m.animating = false
	m.vel = 0
	m.vp.SetYOffset(offset)
	m.pos = float64(m.vp.YOffset)
	m.follow = m.vp.AtBottom()
}

// Update advances the spring on FrameMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}

	target := m.target()
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, target)
	if math.Abs(target-m.pos) < 0.5 && math.Abs(m.vel) < 0.5 {
		m.pos, m.vel = target, 0
		m.animating = false
	}
	m.vp.SetYOffset(int(math.Round(m.pos)))
	if !m.animating {
		return m, nil
	}
	return m, frame()
}

// View renders the list, or the empty state when nothing is retained.
func (m Model) View() string {
	if len(m.items) == 0 {
		text := "No messages yet"
		if m.Connected {
			text = "Waiting for messages..."
		}
		return lipgloss.Place(m.vp.Width, m.vp.Height, lipgloss.Center, lipgloss.Center,
			theme.StyleDimmed.Render(text))
	}
	return m.vp.View()
}

func (m *Model) target() float64 {
	return float64(max(0, len(m.items)-m.vp.Height))
}

func (m *Model) snapToBottom() {
	m.pos, m.vel = m.target(), 0
	m.animating = false
	m.vp.SetYOffset(int(m.pos))
}

func (m *Model) refresh() {
	lines := make([]string, len(m.items))
	for i, msg := range m.items {
		lines[i] = m.renderLine(msg)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

func (m Model) renderLine(msg feed.Message) string {
	id := theme.StyleMessageID.Render(fmt.Sprintf("#%d", msg.ID))
	ts := theme.StyleTimestamp.Render(feed.FormatTime(msg.Timestamp, m.loc))
	line := id + "  " + ts + "  " + msg.Message
	if m.vp.Width > 0 {
		line = lipgloss.NewStyle().MaxWidth(m.vp.Width).Render(line)
	}
	return line
}
