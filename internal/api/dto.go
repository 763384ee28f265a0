package api

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
)

// notBlank rejects strings that are empty after trimming whitespace.
var notBlank = validation.By(func(v any) error {
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return errors.New("cannot be blank")
		}
	case *string:
		if s != nil && strings.TrimSpace(*s) == "" {
			return errors.New("cannot be blank")
		}
	}
	return nil
})

// ListItemRequest is one checklist entry in a request body.
type ListItemRequest struct {
	ID        int64  `json:"id,omitempty" example:"3"`
	Text      string `json:"text" example:"milk" validate:"required"`
	IsChecked bool   `json:"isChecked" example:"false"`
}

// Validate implements validation.Validatable.
func (r ListItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, notBlank),
	)
}

func toItems(in []ListItemRequest) []models.ListItem {
	out := make([]models.ListItem, len(in))
	for i, it := range in {
		out[i] = models.ListItem{ID: it.ID, Text: it.Text, IsChecked: it.IsChecked}
	}
	return out
}

// CreateNoteRequest is the request body for creating a text note.
type CreateNoteRequest struct {
	Title   string        `json:"title" example:"Groceries" validate:"required"`
	Content string        `json:"content" example:"Buy milk"`
	Color   *models.Color `json:"color,omitempty" example:"4294967295"`
}

// Validate implements validation.Validatable.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, notBlank),
	)
}

// CreateListNoteRequest is the request body for creating a checklist note.
type CreateListNoteRequest struct {
	Title string            `json:"title" example:"Shopping" validate:"required"`
	Items []ListItemRequest `json:"items"`
	Color *models.Color     `json:"color,omitempty" example:"4294967295"`
}

// Validate implements validation.Validatable.
func (r *CreateListNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, notBlank),
		validation.Field(&r.Items),
	)
}

// CreateDrawingNoteRequest is the request body for creating a drawing note
// from raw strokes. Width and height default to the standard canvas size.
type CreateDrawingNoteRequest struct {
	Title   string         `json:"title" example:"Sketch" validate:"required"`
	Color   *models.Color  `json:"color,omitempty" example:"4294967295"`
	Width   int            `json:"width,omitempty" example:"800"`
	Height  int            `json:"height,omitempty" example:"800"`
	Strokes []media.Stroke `json:"strokes" validate:"required"`
}

// Validate implements validation.Validatable.
func (r *CreateDrawingNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, notBlank),
		validation.Field(&r.Width, validation.Min(0), validation.Max(4096)),
		validation.Field(&r.Height, validation.Min(0), validation.Max(4096)),
	)
}

// UpdateNoteRequest is the request body for updating a note. Omitted fields
// keep their stored values. Items applies to checklist notes only.
type UpdateNoteRequest struct {
	Title    *string            `json:"title,omitempty" example:"Groceries"`
	Content  *string            `json:"content,omitempty" example:"Buy milk and eggs"`
	Color    *models.Color      `json:"color,omitempty" example:"4294967295"`
	IsPinned *bool              `json:"is_pinned,omitempty" example:"true"`
	Items    *[]ListItemRequest `json:"items,omitempty"`
}

// Validate implements validation.Validatable.
func (r *UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, notBlank),
		validation.Field(&r.Items),
	)
}

// apply merges the request onto n.
func (r *UpdateNoteRequest) apply(n models.Note) models.Note {
	if r.Title != nil {
		n.Title = *r.Title
	}
	if r.Color != nil {
		n.Color = *r.Color
	}
	if r.IsPinned != nil {
		n.IsPinned = *r.IsPinned
	}
	switch n.Type {
	case models.TypeText:
		if r.Content != nil {
			n.Content = *r.Content
		}
	case models.TypeList:
		if r.Items != nil {
			n = n.WithListItems(toItems(*r.Items))
		}
	}
	return n
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string        `json:"query" example:"milk" validate:"required"`
	Results []models.Note `json:"results" validate:"required"`
}

func colorOr(c *models.Color) models.Color {
	if c == nil {
		return models.ColorWhite
	}
	return *c
}

func orEmpty(notes []models.Note) []models.Note {
	if notes == nil {
		return []models.Note{}
	}
	return notes
}
