package api

import (
	"io"
	"net/http"
	"strings"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ReplaceSource handles PUT /api/source. The new document is taken from the
// multipart field "file" or, for any other content type, from the raw body.
//
//	@Summary		Replace the source document and reload
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	false	"New source document"
//	@Success		200		{object}	ReloadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/source [put]
func (h *Handler) ReplaceSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var content []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()
		if content, err = io.ReadAll(file); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
	} else {
		var err error
		if content, err = io.ReadAll(r.Body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return
		}
	}
	if len(content) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("document is empty"))
		return
	}

	ev, err := h.svc.ReplaceSource(r.Context(), content)
	if err != nil {
		writeServiceError(w, "replace source", err)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse(ev))
}
