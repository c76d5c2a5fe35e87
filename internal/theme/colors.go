package theme

import "github.com/charmbracelet/lipgloss"

// Color is an alias for lipgloss.Color for convenience
type Color = lipgloss.Color

// Brand colors
const (
	ColorPrimary   Color = "99" // Purple - app name, titles
	ColorSecondary Color = "86" // Cyan - subtitles
)

// Session status colors
const (
	ColorAborted   Color = "8" // Gray - aborted
	ColorCompleted Color = "2" // Green - completed
	ColorFailed    Color = "1" // Red - error
	ColorIdle      Color = "3" // Yellow - idle
	ColorRunning   Color = "2" // Green - running
	ColorWaiting   Color = "1" // Red - waiting for a permission decision
)

// UI semantic colors
const (
	ColorError     Color = "196" // Bright red
	ColorHighlight Color = "255" // White - emphasis
	ColorMuted     Color = "241" // Gray - secondary text
	ColorNormal    Color = "250" // Default text
	ColorSubtle    Color = "245" // Light gray - labels
	ColorVersion   Color = "240" // Dark gray
)

// Accent colors
const (
	ColorSpinner Color = "205" // Pink
)
