package api

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/checksum"
)

var assetContentTypes = map[string]string{
	".png": "image/png",
	".3gp": "audio/3gpp",
}

// ServeAsset handles GET /api/assets/{name}.
//
//	@Summary		Download a drawing or audio file
//	@Tags			assets
//	@Produce		octet-stream
//	@Param			name	path		string	true	"Asset file name"
//	@Success		200		{file}		binary
//	@Success		304
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets/{name} [get]
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.files.Read(name)
	switch {
	case errors.Is(err, apperr.ErrInvalidAsset):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid asset name"))
		return
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("asset not found"))
		return
	case err != nil:
		h.internalError(w, "read asset failed", err)
		return
	}

	etag := strconv.Quote(checksum.Sum(data))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	ct, ok := assetContentTypes[path.Ext(name)]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
