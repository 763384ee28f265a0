package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. With
// authEnabled every route, the event stream included, requires token.
func NewRouter(h *Handler, authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	if authEnabled {
		r.Use(RequireToken(token))
	}

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/list", h.CreateListNote)
	r.Post("/notes/drawing", h.CreateDrawingNote)
	r.Post("/notes/audio", h.CreateAudioNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)
	r.Post("/notes/{id}/pin", h.TogglePin)

	// Search.
	r.Get("/search", h.Search)

	// Drawing and audio files.
	r.Get("/assets/{name}", h.ServeAsset)

	// Live note list and search results.
	r.Get("/events", h.Events)

	return r
}
