package tui

import (
	"srvpanel/internal/telemetry"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelBorder     = lipgloss.Color("#2D6A80")
	accentPrimary   = lipgloss.Color("#50E3C2")
	accentSecondary = lipgloss.Color("#F6AE2D")
	mutedText       = lipgloss.Color("#8CA1AE")
	warningText     = lipgloss.Color("#FF6B6B")
	bandLow         = lipgloss.Color("#44E7AE")
	bandMedium      = lipgloss.Color("#F6AE2D")
	bandHigh        = lipgloss.Color("#FF6B6B")
)

var (
	headerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(accentPrimary)

	statusStyle = lipgloss.NewStyle().
			Foreground(accentSecondary).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(warningText).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(accentPrimary).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(panelBorder).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(accentSecondary).
			Padding(0, 1)
)

func bandStyle(b telemetry.Band) lipgloss.Style {
	switch b {
	case telemetry.BandHigh:
		return lipgloss.NewStyle().Foreground(bandHigh).Bold(true)
	case telemetry.BandMedium:
		return lipgloss.NewStyle().Foreground(bandMedium)
	default:
		return lipgloss.NewStyle().Foreground(bandLow)
	}
}

func renderPanel(title, body string, width int) string {
	content := panelTitleStyle.Render(title) + "\n" + body
	if width > 0 {
		return panelStyle.Width(width).Render(content)
	}
	return panelStyle.Render(content)
}
