package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/assets"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/repository"
	"github.com/starford/sagenote/internal/sse"
)

// StreamObserver is notified as event streams connect and disconnect.
type StreamObserver interface {
	Streams(delta int)
}

// Handler holds API route handlers.
type Handler struct {
	repo     *repository.Repository
	files    *assets.Dir
	broker   *sse.Broker
	renderer media.Renderer
	streams  StreamObserver
	logger   *slog.Logger
	now      func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithBroker interleaves server-wide events into every event stream.
func WithBroker(b *sse.Broker) HandlerOption {
	return func(h *Handler) { h.broker = b }
}

// WithRenderer sets the drawing renderer. Defaults to a white PNG renderer.
func WithRenderer(r media.Renderer) HandlerOption {
	return func(h *Handler) { h.renderer = r }
}

// WithStreamObserver reports event stream connections.
func WithStreamObserver(o StreamObserver) HandlerOption {
	return func(h *Handler) { h.streams = o }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithHandlerClock sets the clock used to name audio uploads.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a new Handler.
func NewHandler(repo *repository.Repository, files *assets.Dir, opts ...HandlerOption) *Handler {
	h := &Handler{
		repo:     repo,
		files:    files,
		renderer: media.PNGRenderer{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List all notes, pinned first, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.repo.List(r.Context())
	if err != nil {
		h.internalError(w, "list notes failed", err)
		return
	}
	notes = orEmpty(notes)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	n, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		return
	}
	if err != nil {
		h.internalError(w, "get note failed", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a text note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note content"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.insert(w, r, models.NewTextNote(req.Title, req.Content, colorOr(req.Color)))
}

// CreateListNote handles POST /api/notes/list.
//
//	@Summary		Create a checklist note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateListNoteRequest	true	"Checklist"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/list [post]
func (h *Handler) CreateListNote(w http.ResponseWriter, r *http.Request) {
	var req CreateListNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.insert(w, r, models.NewListNote(req.Title, toItems(req.Items), colorOr(req.Color)))
}

// insert stores n and responds with the saved note.
func (h *Handler) insert(w http.ResponseWriter, r *http.Request, n models.Note) bool {
	id, err := h.repo.Insert(r.Context(), n)
	if err != nil {
		h.internalError(w, "create note failed", err)
		return false
	}
	saved, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.internalError(w, "read created note failed", err)
		return false
	}
	writeJSON(w, http.StatusCreated, saved)
	return true
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Update a note
//	@Description	Omitted fields keep their stored values. The update time is set by the server.
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Changed fields"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req UpdateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		return
	}
	if err != nil {
		h.internalError(w, "get note failed", err)
		return
	}
	if err := h.repo.Update(r.Context(), req.apply(n)); err != nil {
		h.internalError(w, "update note failed", err)
		return
	}
	saved, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.internalError(w, "read updated note failed", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and its drawing or audio file
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.repo.DeleteByID(r.Context(), id); err != nil {
		h.internalError(w, "delete note failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePin handles POST /api/notes/{id}/pin.
//
//	@Summary		Flip the pinned flag of a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/pin [post]
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	n, err := h.repo.TogglePin(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("note not found"))
		return
	}
	if err != nil {
		h.internalError(w, "toggle pin failed", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Search handles GET /api/search.
//
//	@Summary		Substring search over titles and content
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	false	"Search text"
//	@Success		200	{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: []models.Note{}})
		return
	}
	notes, err := h.repo.SearchOnce(r.Context(), q)
	if err != nil {
		h.internalError(w, "search failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: orEmpty(notes)})
}
