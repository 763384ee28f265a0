package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/media"
	"github.com/starford/sagenote/internal/models"
)

const maxAudioBytes = 50 << 20

// CreateDrawingNote handles POST /api/notes/drawing.
//
//	@Summary		Create a drawing note from strokes
//	@Description	The strokes are rendered to a PNG file which the note references.
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDrawingNoteRequest	true	"Drawing"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/drawing [post]
func (h *Handler) CreateDrawingNote(w http.ResponseWriter, r *http.Request) {
	var req CreateDrawingNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	canvas := media.NewCanvas(req.Width, req.Height)
	for _, s := range req.Strokes {
		canvas.Add(s)
	}
	name, err := media.SaveDrawing(canvas, h.renderer, h.files)
	if errors.Is(err, apperr.ErrEmptyDrawing) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		h.internalError(w, "save drawing failed", err)
		return
	}
	if !h.insert(w, r, models.NewDrawingNote(req.Title, name, colorOr(req.Color))) {
		h.discard(name)
	}
}

// CreateAudioNote handles POST /api/notes/audio.
//
//	@Summary		Create a voice note from an uploaded recording
//	@Tags			notes
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			title	formData	string	true	"Note title"
//	@Param			color	formData	int		false	"Packed ARGB background"
//	@Param			file	formData	file	true	"3GP recording"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/audio [post]
func (h *Handler) CreateAudioNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	title := r.FormValue("title")
	if strings.TrimSpace(title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title: cannot be blank."))
		return
	}
	color := models.ColorWhite
	if v := r.FormValue("color"); v != "" {
		c, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid color"))
			return
		}
		color = models.Color(c)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing file field"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("empty recording"))
		return
	}

	name, err := h.files.CreateAudio(h.now())
	if err != nil {
		h.internalError(w, "reserve recording failed", err)
		return
	}
	if err := h.files.Write(name, data); err != nil {
		h.discard(name)
		h.internalError(w, "store recording failed", err)
		return
	}
	if !h.insert(w, r, models.NewAudioNote(title, name, color)) {
		h.discard(name)
	}
}

// discard removes an asset whose note could not be saved.
func (h *Handler) discard(name string) {
	if err := h.files.Remove(name); err != nil {
		h.logger.Warn("remove orphaned asset failed", "name", name, "error", err)
	}
}
