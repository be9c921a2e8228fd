package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/models"
)

func (h *Handler) CheckRoster(w http.ResponseWriter, r *http.Request) {
	check, err := h.services.Roster.CheckRoster(r.Context(), chi.URLParam(r, "erp"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, check)
}

func (h *Handler) ListRoster(w http.ResponseWriter, r *http.Request) {
	students, err := h.services.Roster.List(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, students)
}

func (h *Handler) ReplaceRoster(w http.ResponseWriter, r *http.Request) {
	var req models.ReplaceRosterRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	count, err := h.services.Roster.ReplaceRoster(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]int{"imported": count})
}

// ImportRoster takes the raw CSV export as the request body.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer body.Close()

	count, err := h.services.Roster.ImportCSV(r.Context(), identity(r), body, confirmParam(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]int{"imported": count})
}
