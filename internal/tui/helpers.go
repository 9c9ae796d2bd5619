package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// Glamour renderers are expensive to build, so keep one per width
var rendererCache sync.Map // map[int]*glamour.TermRenderer

func getRenderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := rendererCache.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	rendererCache.Store(width, renderer)
	return renderer, nil
}

// RenderDescription renders a markdown description for the terminal.
// It falls back to the raw text when rendering fails.
func RenderDescription(desc string, width int) string {
	if strings.TrimSpace(desc) == "" {
		return lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true).
			Render("No description")
	}

	if width < 20 {
		width = 20
	}
	renderer, err := getRenderer(width)
	if err == nil {
		rendered, err := renderer.Render(desc)
		if err == nil {
			return strings.TrimSpace(rendered)
		}
	}
	return desc
}
