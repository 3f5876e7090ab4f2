package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme names the colors the player screens are drawn with.
type Theme struct {
	Accent  lipgloss.Color // titles, the selected tab and the current lyric
	Playing lipgloss.Color
	Failure lipgloss.Color
	Pending lipgloss.Color
	Muted   lipgloss.Color
}

// DefaultTheme is the violet and green scheme used when none is configured.
var DefaultTheme = Theme{
	Accent:  "#7D56F4",
	Playing: "#04B575",
	Failure: "#FF0000",
	Pending: "#FFA500",
	Muted:   "#626262",
}

var styles = newPalette(DefaultTheme)

// palette holds the rendered styles derived from a [Theme].
type palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	dim    lipgloss.Style
	active lipgloss.Style
	panel  lipgloss.Style
}

func newPalette(t Theme) *palette {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return &palette{
		title:  fg(t.Accent).Bold(true).MarginBottom(1),
		ok:     fg(t.Playing).Bold(true),
		err:    fg(t.Failure).Bold(true),
		warn:   fg(t.Pending),
		dim:    fg(t.Muted),
		active: fg(t.Accent).Bold(true).Underline(true),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
	}
}
