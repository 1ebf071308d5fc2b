package style

import (
	"github.com/charmbracelet/lipgloss"
)

var palette = DefaultPalette()

// Header styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Background(palette.Background).
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 2).
			Margin(0, 0, 1, 0)

	SubHeaderStyle = lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true)
)

// Layout styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 1)

	ActivePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(palette.Primary).
				Padding(0, 1)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(palette.Secondary).
				Bold(true)

	TableRowStyle = lipgloss.NewStyle().
			Foreground(palette.Text)

	TableRowSelectedStyle = lipgloss.NewStyle().
				Foreground(palette.Background).
				Background(palette.Primary)
)

// Text styles
var (
	MutedStyle = lipgloss.NewStyle().Foreground(palette.TextMuted)

	SuccessStyle = lipgloss.NewStyle().Foreground(palette.Success).Bold(true)

	ErrorStyle = lipgloss.NewStyle().Foreground(palette.Error).Bold(true)

	StatStyle = lipgloss.NewStyle().Foreground(palette.TextSecondary)
)
