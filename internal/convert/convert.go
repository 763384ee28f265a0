// Package convert maps note fields to and from their flat storage form.
//
// Decoding never fails: unknown note types read back as TEXT and blank or
// malformed checklist blobs read back as an empty list. Rows written by older
// builds, or edited by hand, degrade instead of breaking the list screen.
package convert

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/starford/sagenote/internal/models"
)

// NoteTypeToString encodes t as its symbolic name.
func NoteTypeToString(t models.NoteType) string {
	return string(t)
}

// NoteTypeFromString decodes a stored type name, falling back to TEXT.
func NoteTypeFromString(s string) models.NoteType {
	t := models.NoteType(s)
	if !t.Valid() {
		return models.TypeText
	}
	return t
}

// ListItemsToJSON encodes checklist items as a JSON array. A nil slice is
// stored as "[]".
func ListItemsToJSON(items []models.ListItem) string {
	if items == nil {
		items = []models.ListItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		// ListItem holds only strings, ints and bools.
		return "[]"
	}
	return string(data)
}

// ListItemsFromJSON decodes a stored checklist blob, returning an empty slice
// for blank or unparsable input.
func ListItemsFromJSON(s string) []models.ListItem {
	if strings.TrimSpace(s) == "" {
		return []models.ListItem{}
	}
	var items []models.ListItem
	if err := json.Unmarshal([]byte(s), &items); err != nil || items == nil {
		return []models.ListItem{}
	}
	return items
}

// TimeToMillis returns the Unix millisecond timestamp of t, or nil.
func TimeToMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// MillisToTime returns the time for a Unix millisecond timestamp, or nil.
func MillisToTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}
