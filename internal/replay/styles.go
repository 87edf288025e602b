// Package replay renders recorded sessions for inspection, either as a
// one-shot timeline or in an interactive pager that can follow a live run.
package replay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Structural / metadata
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	// Conversation flow
	flowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	// Tools - Blue
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	// SQL text - Cyan
	sqlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	// Outcomes
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

var divider = dimStyle.Render(strings.Repeat("─", 72))

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "complete":
		return successStyle
	case "failed":
		return errorStyle
	case "exhausted":
		return warnStyle
	default:
		return warnStyle
	}
}
