package api

import (
	"net/http"
	"strings"

	"github.com/starford/sagenote/internal/sse"
	"github.com/starford/sagenote/internal/store"
)

// Events handles GET /api/events.
//
//	@Summary		Stream the live note list or live search results
//	@Description	Emits a "notes" event with the full result after every change. Without q the stream follows all notes.
//	@Tags			events
//	@Produce		text/event-stream
//	@Param			q	query	string	false	"Search text"
//	@Success		200
//	@Security		BearerAuth
//	@Router			/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	prefix := "Error loading notes: "
	src := h.repo.AllNotes(r.Context())
	if q != "" {
		prefix = "Error searching notes: "
		src = h.repo.Search(r.Context(), q)
	}

	if h.streams != nil {
		h.streams.Streams(1)
		defer h.streams.Streams(-1)
	}

	err := sse.Stream(w, r, h.broker, src, func(s store.Snapshot) sse.Event {
		if s.Err != nil {
			h.logger.Error("live query failed", "query", q, "error", s.Err)
			return sse.Event{Type: "error", Data: errorBody(prefix + s.Err.Error())}
		}
		notes := orEmpty(s.Notes)
		return sse.Event{Type: "notes", Data: NoteListResponse{Notes: notes, Total: len(notes)}}
	})
	if err != nil {
		h.logger.Debug("event stream ended", "error", err)
	}
}
