// Package theme provides the Lip Gloss color palette and reusable styles
// for the feedwatch TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection colors.
var (
	ColorConnected  = lipgloss.Color("#22c55e")
	ColorConnecting = lipgloss.Color("#d97706")
	ColorLost       = lipgloss.Color("#dc2626")
	ColorIdle       = lipgloss.Color("#6b7280")
)

// Message colors.
var (
	ColorMessageID = lipgloss.Color("#a855f7")
	ColorTimestamp = lipgloss.Color("#06b6d4")
)

// Debug log kind colors.
var (
	ColorKindConn  = lipgloss.Color("#2563eb")
	ColorKindError = lipgloss.Color("#dc2626")
	ColorKindUser  = lipgloss.Color("#7c3aed")
	ColorKindFeed  = lipgloss.Color("#d97706")
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#4b5563")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorBright = lipgloss.Color("#f9fafb")
)

// StatusColor returns the color for a status label and connected flag.
// Connected wins; otherwise the label decides between in-progress,
// failure and idle tones.
func StatusColor(label string, connected bool) lipgloss.Color {
	if connected {
		return ColorConnected
	}
	switch label {
	case "Connecting...":
		return ColorConnecting
	case "Connection Lost", "Connection Failed":
		return ColorLost
	default:
		return ColorIdle
	}
}

// StatusGlyph returns the dot shown before the status label.
func StatusGlyph(connected bool) string {
	if connected {
		return "●"
	}
	return "○"
}

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleMessageID = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorMessageID)

	StyleTimestamp = lipgloss.NewStyle().
		Foreground(ColorTimestamp)
)
