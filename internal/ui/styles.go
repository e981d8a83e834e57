package ui

import "github.com/charmbracelet/lipgloss"

// Dracula palette.
const (
	colorForeground = "#F8F8F2"
	colorCyan       = "#8BE9FD"
	colorGreen      = "#50FA7B"
	colorOrange     = "#FFB86C"
	colorPink       = "#FF79C6"
	colorPurple     = "#BD93F9"
	colorRed        = "#FF5555"
	colorYellow     = "#F1FA8C"
	colorComment    = "#6272A4"
)

type styles struct {
	title, group, cursor, light, offline, added, notAdded lipgloss.Style
	label, value, help, status, error, app                lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPurple)).
			Bold(true),
		group: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorCyan)).
			Bold(true),
		cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorPink)).
			Bold(true),
		light: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorForeground)),
		offline: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorComment)).
			Italic(true),
		added: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGreen)),
		notAdded: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorOrange)),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorYellow)).
			Width(12),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorForeground)),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorComment)),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorGreen)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorRed)).
			Bold(true),
		app: lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorPurple)),
	}
}
