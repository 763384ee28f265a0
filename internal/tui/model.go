// Package tui is the terminal front end. It renders the view-model state and
// turns key presses into view-model intents.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/dateutil"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/viewmodel"
)

// ViewModel is the part of viewmodel.ViewModel the terminal UI drives.
type ViewModel interface {
	State() viewmodel.State
	Subscribe() (<-chan struct{}, func())
	InsertNote(ctx context.Context, n models.Note)
	UpdateNote(ctx context.Context, n models.Note)
	DeleteNote(ctx context.Context, n models.Note)
	TogglePin(ctx context.Context, n models.Note)
	Search(query string)
	ClearError()
}

// Audio records and plays voice notes. *media.Session satisfies it.
type Audio interface {
	StartRecording() (string, error)
	StopRecording() (string, error)
	RecordingState() media.State
	RecordingElapsed() time.Duration
	StartPlayback(name string) error
	StopPlayback() error
	PlaybackState() media.State
	PlaybackPosition() (pos, total time.Duration)
}

type mode int

const (
	modeList mode = iota
	modeSearch
	modeTitle
	modeBody
	modeItem
	modeDetail
	modeConfirm
)

const tickInterval = 500 * time.Millisecond

type changedMsg struct{}

type tickMsg time.Time

// Model is the root bubbletea model.
type Model struct {
	ctx         context.Context
	vm          ViewModel
	audio       Audio
	changes     <-chan struct{}
	unsubscribe func()
	now         func() time.Time
	loc         *time.Location

	state  viewmodel.State
	mode   mode
	cursor int
	input  textinput.Model
	flash  string
	failed bool

	// draft is the note being created or edited. A persisted draft is saved
	// with UpdateNote and returns to the detail view.
	draft    models.Note
	itemEdit int

	detailID   int64
	itemCursor int

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithAudio enables recording and playback. Without it voice notes can be
// listed but not played.
func WithAudio(a Audio) Option {
	return func(m *Model) { m.audio = a }
}

// WithClock sets the clock used to title new recordings.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithLocation renders timestamps in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) { m.loc = loc }
}

// New creates a Model over vm. Close releases its subscription.
func New(ctx context.Context, vm ViewModel, opts ...Option) Model {
	ti := textinput.New()
	ti.CharLimit = 512
	m := Model{
		ctx:   ctx,
		vm:    vm,
		input: ti,
		now:   time.Now,
		state: vm.State(),
	}
	m.changes, m.unsubscribe = vm.Subscribe()
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Close unsubscribes from view-model changes.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, vm ViewModel, opts ...Option) error {
	m := New(ctx, vm, opts...)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// visible returns the search results while a query is active, otherwise the
// full list.
func (m Model) visible() []models.Note {
	if strings.TrimSpace(m.state.SearchQuery) != "" {
		return m.state.SearchResults
	}
	return m.state.Notes
}

func (m Model) selected() (models.Note, bool) {
	notes := m.visible()
	if m.cursor < 0 || m.cursor >= len(notes) {
		return models.Note{}, false
	}
	return notes[m.cursor], true
}

func (m Model) detail() (models.Note, bool) {
	for _, n := range m.state.Notes {
		if n.ID == m.detailID {
			return n, true
		}
	}
	return models.Note{}, false
}

func (m Model) formatTime(t time.Time) string {
	if m.loc == nil {
		return dateutil.Format(t)
	}
	return dateutil.FormatIn(t, m.loc)
}

// paint sets the background and the text color that goes with it.
func paint(n models.Note, c models.Color) models.Note {
	n.Color = c
	n.TextColor = colorutil.Foreground(c)
	return n
}

// cycleColor returns the palette entry step places after c. A color outside
// the palette moves to its first entry.
func cycleColor(c models.Color, step int) models.Color {
	size := len(models.Palette)
	for i, p := range models.Palette {
		if p == c {
			return models.Palette[((i+step)%size+size)%size]
		}
	}
	return models.Palette[0]
}

func colorStep(key string) int {
	if key == "shift+tab" {
		return -1
	}
	return 1
}

func (m *Model) clamp() {
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setFlash(msg string, failed bool) {
	m.flash = msg
	m.failed = failed
}

// intent runs a view-model intent off the update loop. The resulting state
// arrives as a changedMsg.
func (m Model) intent(fn func(context.Context, models.Note), n models.Note) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		fn(ctx, n)
		return nil
	}
}

func (m *Model) startInput(md mode, placeholder, value string) tea.Cmd {
	m.mode = md
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-12, 10)
		return m, nil

	case changedMsg:
		m.state = m.vm.State()
		if m.state.ErrorMessage != "" {
			m.setFlash(m.state.ErrorMessage, true)
			m.vm.ClearError()
		}
		m.clamp()
		if m.mode == modeDetail {
			if _, ok := m.detail(); !ok {
				m.mode = modeList
			}
		}
		return m, waitForChange(m.changes)

	case tickMsg:
		if m.audio != nil && (m.audio.RecordingState() != media.Idle || m.audio.PlaybackState() != media.Idle) {
			return m, tick()
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeTitle, modeBody, modeItem:
			return m.updateDraft(msg)
		case modeDetail:
			return m.updateDetail(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}

	if m.inputMode() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) inputMode() bool {
	switch m.mode {
	case modeSearch, modeTitle, modeBody, modeItem:
		return true
	}
	return false
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "/":
		cmd := m.startInput(modeSearch, "search titles and content", m.state.SearchQuery)
		return m, cmd
	case "esc":
		if m.state.SearchQuery != "" {
			m.vm.Search("")
			m.state.SearchQuery = ""
			m.cursor = 0
		}
	case "n":
		cmd := m.startDraft(paint(models.NewTextNote("", "", models.ColorWhite), models.ColorWhite))
		return m, cmd
	case "c":
		cmd := m.startDraft(paint(models.NewListNote("", nil, models.ColorWhite), models.ColorWhite))
		return m, cmd
	case "p":
		if n, ok := m.selected(); ok {
			return m, m.intent(m.vm.TogglePin, n)
		}
	case "d":
		if _, ok := m.selected(); ok {
			m.mode = modeConfirm
		}
	case "enter":
		if n, ok := m.selected(); ok {
			m.mode = modeDetail
			m.detailID = n.ID
			m.itemCursor = 0
		}
	case "r":
		return m.toggleRecording()
	}
	return m, nil
}

func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.audio == nil {
		m.setFlash("Audio recording is not configured", true)
		return m, nil
	}
	if m.audio.RecordingState() == media.Idle {
		if _, err := m.audio.StartRecording(); err != nil {
			m.setFlash("Error recording audio: "+err.Error(), true)
			return m, nil
		}
		m.setFlash("Recording... press r to stop", false)
		return m, tick()
	}
	name, err := m.audio.StopRecording()
	if err != nil {
		m.setFlash("Error recording audio: "+err.Error(), true)
		return m, nil
	}
	n := models.NewAudioNote("Recording "+m.formatTime(m.now()), name, models.ColorWhite)
	m.setFlash("Saved "+name, false)
	return m, m.intent(m.vm.InsertNote, n)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeList
		m.vm.Search("")
		m.state.SearchQuery = ""
		m.cursor = 0
		return m, nil
	case "enter":
		m.input.Blur()
		m.mode = modeList
		m.cursor = 0
		return m, nil
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.vm.Search(v)
		m.state.SearchQuery = v
		m.cursor = 0
	}
	return m, cmd
}

// startDraft opens the title input for n.
func (m *Model) startDraft(n models.Note) tea.Cmd {
	m.draft = n
	return m.startInput(modeTitle, "title", n.Title)
}

func (m Model) updateDraft(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = m.afterDraft()
		return m, nil
	case "tab", "shift+tab":
		if m.mode != modeItem {
			m.draft = paint(m.draft, cycleColor(m.draft.Color, colorStep(msg.String())))
		}
		return m, nil
	case "enter":
		return m.submitDraft(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitDraft(value string) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTitle:
		if strings.TrimSpace(value) == "" {
			m.setFlash("Title cannot be empty", true)
			return m, nil
		}
		m.flash = ""
		m.draft.Title = value
		switch {
		case m.draft.Type == models.TypeText:
			cmd := m.startInput(modeBody, "content", m.draft.Content)
			return m, cmd
		case m.draft.Type == models.TypeList && !m.draft.Persisted():
			cmd := m.startInput(modeBody, "items, separated by commas", "")
			return m, cmd
		}
	case modeBody:
		if m.draft.Type == models.TypeList {
			m.draft = m.draft.WithListItems(parseItems(value))
		} else {
			m.draft.Content = value
		}
	case modeItem:
		text := strings.TrimSpace(value)
		if text == "" {
			m.setFlash("Item cannot be empty", true)
			return m, nil
		}
		items := append([]models.ListItem(nil), m.draft.ListItems...)
		if m.itemEdit >= 0 && m.itemEdit < len(items) {
			items[m.itemEdit].Text = text
		} else {
			items = append(items, models.ListItem{Text: text})
			m.itemCursor = len(items) - 1
		}
		m.draft = m.draft.WithListItems(items)
	}
	return m.saveDraft()
}

// saveDraft sends the draft to the view-model: new notes are inserted,
// persisted ones updated.
func (m Model) saveDraft() (tea.Model, tea.Cmd) {
	m.input.Blur()
	m.flash = ""
	m.mode = m.afterDraft()
	if m.draft.Persisted() {
		return m, m.intent(m.vm.UpdateNote, m.draft)
	}
	return m, m.intent(m.vm.InsertNote, m.draft)
}

// afterDraft is the mode an edit returns to.
func (m Model) afterDraft() mode {
	if m.draft.Persisted() {
		return modeDetail
	}
	return modeList
}

func parseItems(body string) []models.ListItem {
	var items []models.ListItem
	for _, part := range strings.Split(body, ",") {
		if t := strings.TrimSpace(part); t != "" {
			items = append(items, models.ListItem{Text: t})
		}
	}
	return items
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n, ok := m.detail()
	if !ok {
		m.mode = modeList
		return m, nil
	}
	switch msg.String() {
	case "esc", "backspace", "q":
		if m.audio != nil && m.audio.PlaybackState() != media.Idle {
			_ = m.audio.StopPlayback()
		}
		m.mode = modeList
	case "up", "k":
		if m.itemCursor > 0 {
			m.itemCursor--
		}
	case "down", "j":
		if m.itemCursor < len(n.ListItems)-1 {
			m.itemCursor++
		}
	case " ", "x":
		if n.Type == models.TypeList && m.itemCursor < len(n.ListItems) {
			items := append([]models.ListItem(nil), n.ListItems...)
			items[m.itemCursor].IsChecked = !items[m.itemCursor].IsChecked
			return m, m.intent(m.vm.UpdateNote, n.WithListItems(items))
		}
	case "X":
		if n.Type == models.TypeList && m.itemCursor < len(n.ListItems) {
			items := append([]models.ListItem(nil), n.ListItems[:m.itemCursor]...)
			items = append(items, n.ListItems[m.itemCursor+1:]...)
			if m.itemCursor > 0 && m.itemCursor >= len(items) {
				m.itemCursor--
			}
			return m, m.intent(m.vm.UpdateNote, n.WithListItems(items))
		}
	case "a":
		if n.Type == models.TypeList {
			m.draft = n
			m.itemEdit = -1
			cmd := m.startInput(modeItem, "new item", "")
			return m, cmd
		}
	case "i":
		if n.Type == models.TypeList && m.itemCursor < len(n.ListItems) {
			m.draft = n
			m.itemEdit = m.itemCursor
			cmd := m.startInput(modeItem, "item", n.ListItems[m.itemCursor].Text)
			return m, cmd
		}
	case "e":
		cmd := m.startDraft(n)
		return m, cmd
	case "tab", "shift+tab":
		return m, m.intent(m.vm.UpdateNote, paint(n, cycleColor(n.Color, colorStep(msg.String()))))
	case "p":
		return m, m.intent(m.vm.TogglePin, n)
	case "enter":
		if n.Type == models.TypeAudio {
			return m.togglePlayback(n)
		}
	}
	return m, nil
}

func (m Model) togglePlayback(n models.Note) (tea.Model, tea.Cmd) {
	if m.audio == nil {
		m.setFlash("Audio playback is not configured", true)
		return m, nil
	}
	if m.audio.PlaybackState() != media.Idle {
		if err := m.audio.StopPlayback(); err != nil {
			m.setFlash("Error playing audio: "+err.Error(), true)
		}
		return m, nil
	}
	if err := m.audio.StartPlayback(n.AudioPath); err != nil {
		m.setFlash("Error playing audio: "+err.Error(), true)
		return m, nil
	}
	m.flash = ""
	return m, tick()
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.mode = modeList
		if n, ok := m.selected(); ok {
			return m, m.intent(m.vm.DeleteNote, n)
		}
	case "n", "esc":
		m.mode = modeList
	}
	return m, nil
}
