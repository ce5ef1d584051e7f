package tui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF2D55")
	ColorPink    = lipgloss.Color("#C2185B")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	RecordingBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorRed).
				Bold(true)

	PausedBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	FinishedBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	IdleBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	TimerStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	// Adjacent committed segments alternate colors so their boundaries
	// stay visible.
	SegmentStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SegmentAltStyle = lipgloss.NewStyle().
			Foreground(ColorPink)

	LiveSegmentStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	EmptyBarStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)
)
