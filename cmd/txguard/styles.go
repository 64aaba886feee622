package main

import "github.com/charmbracelet/lipgloss"

// Styles used across the CLI commands
var (
	titleStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFA500")). // Gold/Amber
		Bold(true).
		Padding(1, 0)

	headingStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#87CEEB")). // Sky blue
		Bold(true)

	promptStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#CCCCCC")) // Light Gray

	safeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#32CD32")). // Lime green
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6347")). // Tomato red
		Bold(true)
)
