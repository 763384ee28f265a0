package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/viewmodel"
)

type call struct {
	op   string
	note models.Note
}

type fakeVM struct {
	mu       sync.Mutex
	state    viewmodel.State
	calls    []call
	searches []string
	cleared  int
	changes  chan struct{}
}

func newFakeVM(notes ...models.Note) *fakeVM {
	return &fakeVM{
		state:   viewmodel.State{Notes: notes, SearchResults: []models.Note{}},
		changes: make(chan struct{}, 1),
	}
}

func (f *fakeVM) State() viewmodel.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeVM) Subscribe() (<-chan struct{}, func()) { return f.changes, func() {} }

func (f *fakeVM) record(op string, n models.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op, n})
}

func (f *fakeVM) InsertNote(_ context.Context, n models.Note) { f.record("insert", n) }
func (f *fakeVM) UpdateNote(_ context.Context, n models.Note) { f.record("update", n) }
func (f *fakeVM) DeleteNote(_ context.Context, n models.Note) { f.record("delete", n) }
func (f *fakeVM) TogglePin(_ context.Context, n models.Note)  { f.record("pin", n) }

func (f *fakeVM) Search(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, q)
	f.state.SearchQuery = q
}

func (f *fakeVM) ClearError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.state.ErrorMessage = ""
}

func note(id int64, title string, typ models.NoteType) models.Note {
	n := models.NewTextNote(title, "body of "+title, models.ColorWhite)
	n.ID = id
	n.Type = typ
	n.TextColor = models.ColorBlack
	return n
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds key presses to m and runs any command that is not a blocking
// wait, returning the final model.
func press(t *testing.T, m Model, inputs ...string) Model {
	t.Helper()
	for _, in := range inputs {
		next, cmd := m.Update(keys(in))
		m = next.(Model)
		run(cmd)
	}
	return m
}

// typeText sends each rune as its own key press.
func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = press(t, m, string(r))
	}
	return m
}

// run executes intent commands synchronously. Blink, tick and batch
// commands are skipped.
func run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		cmd()
	}()
	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
	}
}

func (f *fakeVM) lastCall(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func TestNavigateAndTogglePin(t *testing.T) {
	vm := newFakeVM(note(1, "first", models.TypeText), note(2, "second", models.TypeText))
	m := New(context.Background(), vm)

	m = press(t, m, "j", "j", "p")
	assert.Equal(t, 1, m.cursor, "cursor stops at the last row")
	c := vm.lastCall(t)
	assert.Equal(t, "pin", c.op)
	assert.Equal(t, int64(2), c.note.ID)

	m = press(t, m, "k", "k")
	assert.Equal(t, 0, m.cursor)
}

func TestCreateTextNote(t *testing.T) {
	vm := newFakeVM()
	m := New(context.Background(), vm)

	m = press(t, m, "n")
	assert.Equal(t, modeTitle, m.mode)

	// Blank titles are rejected before reaching the view-model.
	m = press(t, m, " ", "enter")
	assert.Equal(t, modeTitle, m.mode)
	assert.True(t, m.failed)
	assert.Empty(t, vm.calls)

	m.input.SetValue("")
	m = typeText(t, m, "Groceries")
	m = press(t, m, "enter")
	assert.Equal(t, modeBody, m.mode)
	m = typeText(t, m, "milk")
	m = press(t, m, "enter")

	assert.Equal(t, modeList, m.mode)
	c := vm.lastCall(t)
	assert.Equal(t, "insert", c.op)
	assert.Equal(t, "Groceries", c.note.Title)
	assert.Equal(t, "milk", c.note.Content)
	assert.Equal(t, models.TypeText, c.note.Type)
}

func TestCreateChecklist(t *testing.T) {
	vm := newFakeVM()
	m := New(context.Background(), vm)

	m = press(t, m, "c")
	m = typeText(t, m, "Shop")
	m = press(t, m, "enter")
	m = typeText(t, m, "milk, ,eggs")
	press(t, m, "enter")

	c := vm.lastCall(t)
	require.Equal(t, models.TypeList, c.note.Type)
	require.Len(t, c.note.ListItems, 2)
	assert.Equal(t, "eggs", c.note.ListItems[1].Text)
	assert.Equal(t, "List with 2 items", c.note.Content)
}

func TestSearchFollowsInput(t *testing.T) {
	vm := newFakeVM(note(1, "milk", models.TypeText))
	m := New(context.Background(), vm)

	m = press(t, m, "/")
	assert.Equal(t, modeSearch, m.mode)
	m = typeText(t, m, "mi")
	assert.Equal(t, []string{"m", "mi"}, vm.searches)

	m = press(t, m, "enter")
	assert.Equal(t, modeList, m.mode)

	m = press(t, m, "esc")
	assert.Equal(t, "", vm.searches[len(vm.searches)-1])
	_ = m
}

func TestVisibleUsesSearchResults(t *testing.T) {
	vm := newFakeVM(note(1, "a", models.TypeText), note(2, "b", models.TypeText))
	m := New(context.Background(), vm)
	m.state.SearchQuery = "b"
	m.state.SearchResults = []models.Note{note(2, "b", models.TypeText)}

	require.Len(t, m.visible(), 1)
	m.state.SearchQuery = "  "
	assert.Len(t, m.visible(), 2)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	vm := newFakeVM(note(1, "a", models.TypeText))
	m := New(context.Background(), vm)

	m = press(t, m, "d")
	assert.Equal(t, modeConfirm, m.mode)
	assert.Contains(t, m.View(), `Delete "a"?`)
	m = press(t, m, "n")
	assert.Empty(t, vm.calls)

	press(t, m, "d", "y")
	assert.Equal(t, "delete", vm.lastCall(t).op)
}

func TestErrorShownOnceAndCleared(t *testing.T) {
	vm := newFakeVM()
	vm.state.ErrorMessage = "Error deleting note: disk full"
	m := New(context.Background(), vm)

	next, cmd := m.Update(changedMsg{})
	m = next.(Model)
	assert.NotNil(t, cmd, "must keep waiting for changes")
	assert.Equal(t, 1, vm.cleared)
	assert.True(t, m.failed)
	assert.Contains(t, m.View(), "disk full")

	// Any key in the list dismisses it.
	m = press(t, m, "j")
	assert.NotContains(t, m.View(), "disk full")
}

func TestChecklistDetailTogglesItem(t *testing.T) {
	n := models.NewListNote("Shop", []models.ListItem{{Text: "milk"}, {Text: "eggs"}}, models.ColorWhite)
	n.ID = 5
	vm := newFakeVM(n)
	m := New(context.Background(), vm)

	m = press(t, m, "enter")
	require.Equal(t, modeDetail, m.mode)
	assert.Contains(t, m.View(), "[ ] eggs")

	press(t, m, "j", " ")
	c := vm.lastCall(t)
	assert.Equal(t, "update", c.op)
	assert.False(t, c.note.ListItems[0].IsChecked)
	assert.True(t, c.note.ListItems[1].IsChecked)
}

func TestDetailClosesWhenNoteDisappears(t *testing.T) {
	vm := newFakeVM(note(1, "a", models.TypeText))
	m := New(context.Background(), vm)
	m = press(t, m, "enter")
	require.Equal(t, modeDetail, m.mode)

	vm.state.Notes = nil
	next, _ := m.Update(changedMsg{})
	assert.Equal(t, modeList, next.(Model).mode)
}

type fakeAudio struct {
	rec, play media.State
	startErr  error
	played    string
}

func (a *fakeAudio) StartRecording() (string, error) {
	if a.startErr != nil {
		return "", a.startErr
	}
	a.rec = media.Active
	return "audio_20240506_070809.3gp", nil
}

func (a *fakeAudio) StopRecording() (string, error) {
	a.rec = media.Idle
	return "audio_20240506_070809.3gp", nil
}

func (a *fakeAudio) RecordingState() media.State     { return a.rec }
func (a *fakeAudio) RecordingElapsed() time.Duration { return 65 * time.Second }

func (a *fakeAudio) StartPlayback(name string) error {
	a.played = name
	a.play = media.Active
	return nil
}

func (a *fakeAudio) StopPlayback() error {
	a.play = media.Idle
	return nil
}

func (a *fakeAudio) PlaybackState() media.State                   { return a.play }
func (a *fakeAudio) PlaybackPosition() (pos, total time.Duration) { return 3 * time.Second, 0 }

func TestRecordCreatesAudioNote(t *testing.T) {
	vm := newFakeVM()
	audio := &fakeAudio{}
	m := New(context.Background(), vm, WithAudio(audio),
		WithClock(func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }))

	m = press(t, m, "r")
	assert.Equal(t, media.Active, audio.rec)
	assert.Contains(t, m.View(), "REC active 01:05")

	press(t, m, "r")
	c := vm.lastCall(t)
	assert.Equal(t, models.TypeAudio, c.note.Type)
	assert.Equal(t, "audio_20240506_070809.3gp", c.note.AudioPath)
	assert.True(t, strings.HasPrefix(c.note.Title, "Recording May 06, 2024"))
}

func TestRecordWithoutAudioOrFailure(t *testing.T) {
	m := New(context.Background(), newFakeVM())
	m = press(t, m, "r")
	assert.True(t, m.failed)

	audio := &fakeAudio{startErr: errors.New("mic busy")}
	m = New(context.Background(), newFakeVM(), WithAudio(audio))
	m = press(t, m, "r")
	assert.Contains(t, m.flash, "mic busy")
	assert.Equal(t, media.Idle, audio.rec)
}

func TestPlayAudioNote(t *testing.T) {
	n := note(3, "memo", models.TypeAudio)
	n.AudioPath = "audio_1.3gp"
	audio := &fakeAudio{}
	m := New(context.Background(), newFakeVM(n), WithAudio(audio))

	m = press(t, m, "enter", "enter")
	assert.Equal(t, "audio_1.3gp", audio.played)
	assert.Contains(t, m.View(), "PLAY active 00:03")

	m = press(t, m, "esc")
	assert.Equal(t, media.Idle, audio.play, "leaving the detail view stops playback")
	assert.Equal(t, modeList, m.mode)
}

func TestDraftColorFromPalette(t *testing.T) {
	vm := newFakeVM()
	m := New(context.Background(), vm)

	m = press(t, m, "n", "tab", "tab")
	assert.Equal(t, models.Palette[2], m.draft.Color)
	assert.Contains(t, m.View(), colorutil.Hex(models.Palette[2]))

	m = press(t, m, "shift+tab")
	m = typeText(t, m, "Tinted")
	m = press(t, m, "enter", "enter")

	c := vm.lastCall(t)
	assert.Equal(t, "insert", c.op)
	assert.Equal(t, models.Palette[1], c.note.Color)
	assert.Equal(t, colorutil.Foreground(models.Palette[1]), c.note.TextColor)
}

func TestDraftColorWrapsBackwards(t *testing.T) {
	m := New(context.Background(), newFakeVM())
	m = press(t, m, "c", "shift+tab")
	assert.Equal(t, models.Palette[len(models.Palette)-1], m.draft.Color)
}

func TestDetailColorChangeUpdatesTextColor(t *testing.T) {
	n := note(4, "dark", models.TypeText)
	n.Color = models.ColorBlack
	n.TextColor = models.ColorWhite
	vm := newFakeVM(n)
	m := New(context.Background(), vm)

	m = press(t, m, "enter", "tab")
	c := vm.lastCall(t)
	assert.Equal(t, "update", c.op)
	assert.Equal(t, models.Palette[0], c.note.Color)
	assert.Equal(t, models.ColorBlack, c.note.TextColor, "text color must follow the new background")
	assert.Equal(t, modeDetail, m.mode)
}

func TestEditTextNote(t *testing.T) {
	vm := newFakeVM(note(7, "old", models.TypeText))
	m := New(context.Background(), vm)

	m = press(t, m, "enter", "e")
	require.Equal(t, modeTitle, m.mode)
	assert.Equal(t, "old", m.input.Value())

	m.input.SetValue("")
	m = typeText(t, m, "new")
	m = press(t, m, "enter")
	require.Equal(t, modeBody, m.mode)
	assert.Equal(t, "body of old", m.input.Value())
	m = typeText(t, m, "!")
	m = press(t, m, "enter")

	assert.Equal(t, modeDetail, m.mode)
	c := vm.lastCall(t)
	assert.Equal(t, "update", c.op)
	assert.Equal(t, int64(7), c.note.ID)
	assert.Equal(t, "new", c.note.Title)
	assert.Equal(t, "body of old!", c.note.Content)
}

func TestEditCancelReturnsToDetail(t *testing.T) {
	vm := newFakeVM(note(7, "old", models.TypeText))
	m := New(context.Background(), vm)

	m = press(t, m, "enter", "e", "esc")
	assert.Equal(t, modeDetail, m.mode)
	assert.Empty(t, vm.calls)
}

func TestChecklistAddEditRemoveItems(t *testing.T) {
	n := models.NewListNote("Shop", []models.ListItem{{Text: "milk"}, {Text: "eggs"}}, models.ColorWhite)
	n.ID = 9
	vm := newFakeVM(n)
	m := New(context.Background(), vm)

	m = press(t, m, "enter", "a")
	require.Equal(t, modeItem, m.mode)
	m = typeText(t, m, "bread")
	m = press(t, m, "enter")
	assert.Equal(t, modeDetail, m.mode)
	c := vm.lastCall(t)
	require.Len(t, c.note.ListItems, 3)
	assert.Equal(t, "bread", c.note.ListItems[2].Text)
	assert.Equal(t, 2, c.note.ListItems[2].Position)
	assert.Equal(t, "List with 3 items", c.note.Content)

	m.itemCursor = 0
	m = press(t, m, "i")
	require.Equal(t, "milk", m.input.Value())
	m = typeText(t, m, "s")
	m = press(t, m, "enter")
	assert.Equal(t, "milks", vm.lastCall(t).note.ListItems[0].Text)

	m.itemCursor = 0
	press(t, m, "X")
	c = vm.lastCall(t)
	require.Len(t, c.note.ListItems, 1)
	assert.Equal(t, "eggs", c.note.ListItems[0].Text)
	assert.Equal(t, 0, c.note.ListItems[0].Position)
	assert.Equal(t, "List with 1 items", c.note.Content)
}

func TestChecklistRejectsBlankItem(t *testing.T) {
	n := models.NewListNote("Shop", nil, models.ColorWhite)
	n.ID = 9
	vm := newFakeVM(n)
	m := New(context.Background(), vm)

	m = press(t, m, "enter", "a", " ", "enter")
	assert.Equal(t, modeItem, m.mode)
	assert.True(t, m.failed)
	assert.Empty(t, vm.calls)
}

func TestTimestampsUseLocation(t *testing.T) {
	n := note(1, "a", models.TypeText)
	n.UpdatedAt = time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	m := New(context.Background(), newFakeVM(n), WithLocation(time.UTC))
	assert.Contains(t, m.View(), "Mar 05, 2024 02:07 PM")
}

var (
	_ ViewModel = (*viewmodel.ViewModel)(nil)
	_ Audio     = (*media.Session)(nil)
)
