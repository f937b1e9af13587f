package tui

import "github.com/charmbracelet/lipgloss"

// Palette (ANSI 256).
const (
	colorAccent = lipgloss.Color("212")
	colorOK     = lipgloss.Color("78")
	colorFail   = lipgloss.Color("196")
	colorWarn   = lipgloss.Color("214")
	colorMuted  = lipgloss.Color("241")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	successStyle = lipgloss.NewStyle().Foreground(colorOK)
	errorStyle   = lipgloss.NewStyle().Foreground(colorFail)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	dimStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	spinnerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)

	userMsgStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("111"))

	assistantMsgStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// Styled text for command output.
var (
	Title   = titleStyle.Render
	Success = successStyle.Render
	Warn    = warnStyle.Render
	Error   = errorStyle.Render
	Dim     = dimStyle.Render
)
