// Package help renders the key reference overlay from Markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/feedwatch/feedwatch/internal/theme"
)

// Markdown builds the help document for the given bindings.
func Markdown(url string, bindings []key.Binding) string {
	var b strings.Builder
	b.WriteString("# feedwatch\n\n")
	b.WriteString("Live view of a server-sent message stream.\n\n")
	if url != "" {
		fmt.Fprintf(&b, "Endpoint: `%s`\n\n", url)
	}
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nThe connection is retried automatically a few seconds after it is lost, ")
	b.WriteString("and again shortly after the terminal regains focus.\n")
	return b.String()
}

// View renders the overlay. If glamour fails the raw Markdown is shown.
func View(width int, url string, bindings []key.Binding) string {
	innerW := width - 4
	if innerW < 30 {
		innerW = 30
	}

	md := Markdown(url, bindings)
	body := md
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(innerW-4),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	footer := theme.StyleDimmed.Render("esc/?: close")
	content := lipgloss.JoinVertical(lipgloss.Left, body, "", footer)
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
