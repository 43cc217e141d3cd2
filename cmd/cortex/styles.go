package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	tensionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	activityStyles = map[string]lipgloss.Style{
		"active":  okStyle,
		"fading":  warnStyle,
		"dormant": mutedStyle,
	}
)

func header(w io.Writer, title string) {
	fmt.Fprintln(w, headerStyle.Render(title))
}

func field(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label+":"), value)
}

func activity(a string) string {
	if s, ok := activityStyles[a]; ok {
		return s.Render(a)
	}
	return a
}

// bar renders n as a row of blocks, capped at width.
func bar(n, width int) string {
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}
