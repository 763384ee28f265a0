package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/models"
)

var (
	textMuted = lipgloss.Color("8")
	primary   = lipgloss.Color("4")
	secondary = lipgloss.Color("6")
	danger    = lipgloss.Color("1")
	success   = lipgloss.Color("2")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primary)
	mutedStyle  = lipgloss.NewStyle().Foreground(textMuted)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(danger)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(success)
	promptStyle = lipgloss.NewStyle().Foreground(secondary)
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(success)
	inputBox    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1)
	detailBox   = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
)

// noteStyle paints a row in the note's own background and derived text color.
func noteStyle(n models.Note) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(colorutil.Hex(n.Color))).
		Foreground(lipgloss.Color(colorutil.Hex(n.TextColor)))
}
