package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/dateutil"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SageNote"))
	if q := m.state.SearchQuery; strings.TrimSpace(q) != "" && m.mode != modeSearch {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  search: %q", q)))
	}
	b.WriteString("\n\n")

	switch m.mode {
	case modeDetail:
		b.WriteString(m.viewDetail())
	default:
		b.WriteString(m.viewList())
	}

	switch m.mode {
	case modeSearch:
		b.WriteString("\n" + m.viewInput("Search"))
	case modeTitle:
		b.WriteString("\n" + m.viewDraftInput("Title"))
	case modeBody:
		label := "Content"
		if m.draft.Type == models.TypeList {
			label = "Items"
		}
		b.WriteString("\n" + m.viewDraftInput(label))
	case modeItem:
		b.WriteString("\n" + m.viewInput("Item"))
	case modeConfirm:
		if n, ok := m.selected(); ok {
			b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Delete %q?", n.Title)) + " [y] yes  [n] no")
		}
	}

	if status := m.viewAudioStatus(); status != "" {
		b.WriteString("\n" + status)
	}
	if m.flash != "" {
		style := okStyle
		if m.failed {
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.flash))
	}
	b.WriteString("\n" + mutedStyle.Render(m.help()))
	return b.String()
}

func (m Model) viewList() string {
	notes := m.visible()
	if len(notes) == 0 {
		if strings.TrimSpace(m.state.SearchQuery) != "" {
			return mutedStyle.Render("No matching notes") + "\n"
		}
		return mutedStyle.Render("No notes yet. Press n to write one.") + "\n"
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	var b strings.Builder
	for i, n := range notes {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		b.WriteString(marker + noteStyle(n).Width(width).Render(m.rowText(n)) + "\n")
	}
	return b.String()
}

func (m Model) rowText(n models.Note) string {
	pin := " "
	if n.IsPinned {
		pin = "*"
	}
	return fmt.Sprintf("%s %-8s %s  %s", pin, kindLabel(n.Type), n.Title, m.formatTime(n.UpdatedAt))
}

func kindLabel(t models.NoteType) string {
	switch t {
	case models.TypeList:
		return "[list]"
	case models.TypeDrawing:
		return "[draw]"
	case models.TypeAudio:
		return "[audio]"
	}
	return "[text]"
}

func (m Model) viewDetail() string {
	n, ok := m.detail()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(n.Title) + "\n")
	b.WriteString(fmt.Sprintf("Created %s, updated %s\n\n",
		m.formatTime(n.CreatedAt), m.formatTime(n.UpdatedAt)))

	switch n.Type {
	case models.TypeList:
		for i, it := range n.ListItems {
			box := "[ ]"
			if it.IsChecked {
				box = "[x]"
			}
			line := box + " " + it.Text
			if i == m.itemCursor {
				line = cursorStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	case models.TypeDrawing:
		b.WriteString("Drawing: " + n.DrawingPath + "\n")
	case models.TypeAudio:
		b.WriteString("Recording: " + n.AudioPath + "\n")
	default:
		b.WriteString(n.Content + "\n")
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}
	style := detailBox.
		Background(lipgloss.Color(colorutil.Hex(n.Color))).
		Foreground(lipgloss.Color(colorutil.Hex(n.TextColor)))
	return style.Width(width).Render(b.String()) + "\n"
}

func (m Model) viewInput(label string) string {
	return inputBox.Render(promptStyle.Render(label+": ") + m.input.View() + "\n" +
		mutedStyle.Render("[enter] confirm  [esc] cancel"))
}

// viewDraftInput adds a swatch of the draft's color to the input box.
func (m Model) viewDraftInput(label string) string {
	swatch := noteStyle(m.draft).Render(" " + colorutil.Hex(m.draft.Color) + " ")
	return inputBox.Render(promptStyle.Render(label+": ") + m.input.View() + "\n" +
		mutedStyle.Render("Color ") + swatch + "\n" +
		mutedStyle.Render("[enter] confirm  [tab] color  [esc] cancel"))
}

func (m Model) viewAudioStatus() string {
	if m.audio == nil {
		return ""
	}
	if st := m.audio.RecordingState(); st != media.Idle {
		return errorStyle.Render(fmt.Sprintf("REC %s %s", st, dateutil.FormatDuration(m.audio.RecordingElapsed())))
	}
	if st := m.audio.PlaybackState(); st != media.Idle {
		pos, total := m.audio.PlaybackPosition()
		s := fmt.Sprintf("PLAY %s %s", st, dateutil.FormatDuration(pos))
		if total > 0 {
			s += " / " + dateutil.FormatDuration(total)
		}
		return okStyle.Render(s)
	}
	return ""
}

func (m Model) help() string {
	switch m.mode {
	case modeDetail:
		if n, ok := m.detail(); ok && n.Type == models.TypeList {
			return "[space] check  [a] add  [i] edit item  [X] remove  [e] edit title  [tab] color  [p] pin  [esc] back"
		}
		return "[e] edit  [tab] color  [enter] play/stop  [p] pin  [esc] back"
	case modeConfirm, modeSearch, modeTitle, modeBody, modeItem:
		return ""
	}
	return "[n] note  [c] checklist  [r] record  [/] search  [p] pin  [d] delete  [enter] open  [q] quit"
}
