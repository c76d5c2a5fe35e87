package theme

import "github.com/charmbracelet/lipgloss"

// Main UI styles
var (
	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(1, 0)

	NormalStyle = lipgloss.NewStyle().
			Foreground(ColorNormal)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorSpinner)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(1, 0)
)

// Status icon styles
var (
	AbortedIconStyle = lipgloss.NewStyle().
				Foreground(ColorAborted)

	CompletedIconStyle = lipgloss.NewStyle().
				Foreground(ColorCompleted)

	FailedIconStyle = lipgloss.NewStyle().
			Foreground(ColorFailed)

	IdleIconStyle = lipgloss.NewStyle().
			Foreground(ColorIdle)

	RunningIconStyle = lipgloss.NewStyle().
				Foreground(ColorRunning)

	WaitingIconStyle = lipgloss.NewStyle().
				Foreground(ColorWaiting)
)
