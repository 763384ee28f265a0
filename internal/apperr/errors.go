package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidAsset = errors.New("invalid asset name")
	ErrNoSession    = errors.New("no active session")
	ErrEmptyDrawing = errors.New("drawing has no strokes")
)
