package tui

import "github.com/charmbracelet/lipgloss"

var (
	pathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	clockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	navStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	dropStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // orange
)
