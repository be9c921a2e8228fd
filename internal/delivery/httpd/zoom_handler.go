package httpd

import (
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxZoomFormMemory = 10 << 20

// ProcessZoomLog accepts a multipart upload with a "file" part and an
// optional "threshold" percentage.
func (h *Handler) ProcessZoomLog(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(maxZoomFormMemory); err != nil {
		h.handleError(w, r, badRequest("failed to parse form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var threshold *int
	if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "threshold must be a whole number")
			return
		}
		threshold = &v
	}

	result, err := h.services.Zoom.Process(r.Context(), identity(r), header.Filename, content, threshold)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, result)
}
