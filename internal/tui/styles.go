package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#0EA5E9")
	colorUser   = lipgloss.Color("#A855F7")
	colorBell   = lipgloss.Color("#FBBF24")
	colorError  = lipgloss.Color("#EF4444")
	colorMuted  = lipgloss.Color("#6B7280")
	colorPanel  = lipgloss.Color("#1F2937")
	colorText   = lipgloss.Color("#F9FAFB")

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccent)

	mutedStyle = lipgloss.NewStyle().
		Foreground(colorMuted)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(colorUser).
			Bold(true)

	personaLabelStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
		Foreground(colorText).
		PaddingLeft(2)

	toolLineStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorPanel).
			PaddingLeft(1).
			PaddingRight(1)

	reminderStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorBell).
			PaddingLeft(1)

	bellStyle = lipgloss.NewStyle().
		Foreground(colorBell).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	inputStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1)

	inputBusyStyle = inputStyle.
			BorderForeground(colorMuted)
)
