package style

import "github.com/charmbracelet/lipgloss"

// LogStyles provides styling for the compact log pane
type LogStyles struct {
	Container lipgloss.Style
	Title     lipgloss.Style
	Timestamp lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Debug     lipgloss.Style
}

// NewLogStyles creates log pane styles
func NewLogStyles(palette Palette) LogStyles {
	return LogStyles{
		Container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Info).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Foreground(palette.Info).
			Bold(true),

		Timestamp: lipgloss.NewStyle().
			Foreground(palette.TextMuted),

		Error: lipgloss.NewStyle().
			Foreground(palette.Error).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(palette.Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(palette.Info),

		Debug: lipgloss.NewStyle().
			Foreground(palette.TextMuted),
	}
}

// Level returns the style for a zap level name.
func (s LogStyles) Level(level string) lipgloss.Style {
	switch level {
	case "error", "dpanic", "panic", "fatal":
		return s.Error
	case "warn":
		return s.Warning
	case "debug":
		return s.Debug
	default:
		return s.Info
	}
}
