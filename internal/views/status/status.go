package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Label     string
	Connected bool
	Count     int
	Elapsed   string
	URL       string
	Width     int
}

// New creates a status bar model for an idle connection.
func New(url string) Model {
	return Model{
		Label:   "Disconnected",
		Elapsed: feed.Placeholder,
		URL:     url,
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	color := theme.StatusColor(m.Label, m.Connected)
	connStr := lipgloss.NewStyle().Foreground(color).Render(theme.StatusGlyph(m.Connected) + " " + m.Label)

	noun := "messages"
	if m.Count == 1 {
		noun = "message"
	}
	counts := fmt.Sprintf("%d %s", m.Count, noun)
	elapsed := "uptime " + m.Elapsed

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts + sep + elapsed
	if m.URL != "" {
		content += sep + theme.StyleDimmed.Render(m.URL)
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
