// Package models defines the domain types for SageNote.
package models

import (
	"fmt"
	"time"
)

// NoteType is the kind of a note.
type NoteType string

// Note kinds.
const (
	TypeText    NoteType = "TEXT"
	TypeList    NoteType = "LIST"
	TypeDrawing NoteType = "DRAWING"
	TypeAudio   NoteType = "AUDIO"
)

// NoteTypes lists every known kind in declaration order.
var NoteTypes = []NoteType{TypeText, TypeList, TypeDrawing, TypeAudio}

// Valid reports whether t is one of the known kinds.
func (t NoteType) Valid() bool {
	switch t {
	case TypeText, TypeList, TypeDrawing, TypeAudio:
		return true
	}
	return false
}

// Color is a packed 0xAARRGGBB value.
type Color uint32

// Base colors.
const (
	ColorWhite Color = 0xFFFFFFFF
	ColorBlack Color = 0xFF000000
)

// Palette holds the background colors offered when editing a note.
var Palette = []Color{
	ColorWhite,
	0xFFF28B82, // red
	0xFFFBBC04, // orange
	0xFFFFF475, // yellow
	0xFFCCFF90, // green
	0xFFA7FFEB, // teal
	0xFFCBF0F8, // blue
	0xFFAECBFA, // dark blue
	0xFFD7AEFB, // purple
	0xFFFDCFE8, // pink
	0xFFE6C9A8, // brown
	0xFFE8EAED, // gray
	0xFF202124, // dark
}

// Note is the persisted unit of user content.
//
// TextColor is derived from Color by the repository on every write; values set
// by callers are discarded.
type Note struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Color       Color      `json:"color"`
	TextColor   Color      `json:"text_color"`
	IsPinned    bool       `json:"is_pinned"`
	Type        NoteType   `json:"type"`
	ListItems   []ListItem `json:"list_items"`
	DrawingPath string     `json:"drawing_path"`
	AudioPath   string     `json:"audio_path"`
}

// ListItem is one entry of a checklist note.
type ListItem struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
	Position  int    `json:"position"`
}

// Content summaries stored on non-text notes.
const (
	DrawingSummary = "Drawing note"
	AudioSummary   = "Audio recording"
)

// ListSummary returns the content summary for a checklist with n items.
func ListSummary(n int) string {
	return fmt.Sprintf("List with %d items", n)
}

func newNote(title, content string, color Color, typ NoteType) Note {
	now := time.Now()
	return Note{
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		Color:     color,
		Type:      typ,
		ListItems: []ListItem{},
	}
}

// NewTextNote returns an unsaved plain text note.
func NewTextNote(title, content string, color Color) Note {
	return newNote(title, content, color, TypeText)
}

// NewListNote returns an unsaved checklist note. Items are renumbered from
// their current order.
func NewListNote(title string, items []ListItem, color Color) Note {
	n := newNote(title, ListSummary(len(items)), color, TypeList)
	n.ListItems = RenumberItems(items)
	return n
}

// NewDrawingNote returns an unsaved drawing note referencing drawingPath.
func NewDrawingNote(title, drawingPath string, color Color) Note {
	n := newNote(title, DrawingSummary, color, TypeDrawing)
	n.DrawingPath = drawingPath
	return n
}

// NewAudioNote returns an unsaved voice note referencing audioPath.
func NewAudioNote(title, audioPath string, color Color) Note {
	n := newNote(title, AudioSummary, color, TypeAudio)
	n.AudioPath = audioPath
	return n
}

// RenumberItems returns a copy of items with positions set to 0..N-1 in
// slice order.
func RenumberItems(items []ListItem) []ListItem {
	out := make([]ListItem, len(items))
	for i, it := range items {
		it.Position = i
		out[i] = it
	}
	return out
}

// WithListItems returns n with the given checklist items renumbered and the
// content summary refreshed.
func (n Note) WithListItems(items []ListItem) Note {
	n.ListItems = RenumberItems(items)
	n.Content = ListSummary(len(items))
	return n
}

// AssetPath returns the asset file referenced by the note's kind, or "".
func (n Note) AssetPath() string {
	switch n.Type {
	case TypeDrawing:
		return n.DrawingPath
	case TypeAudio:
		return n.AudioPath
	}
	return ""
}

// Persisted reports whether the note has been assigned an id by the store.
func (n Note) Persisted() bool {
	return n.ID != 0
}
