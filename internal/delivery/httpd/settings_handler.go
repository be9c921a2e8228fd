package httpd

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/models"
)

func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	features, err := h.services.Settings.Features(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, features)
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.services.Settings.List(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, settings)
}

func (h *Handler) GetSetting(w http.ResponseWriter, r *http.Request) {
	setting, err := h.services.Settings.Get(r.Context(), identity(r), chi.URLParam(r, "key"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, setting)
}

func (h *Handler) SetSetting(w http.ResponseWriter, r *http.Request) {
	var req models.SetSettingRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	setting, err := h.services.Settings.Set(r.Context(), identity(r), chi.URLParam(r, "key"), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, setting)
}

func (h *Handler) ListPenaltyTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.services.Penalties.ListTypes(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, types)
}

func (h *Handler) ListRuleExceptions(w http.ResponseWriter, r *http.Request) {
	erp := strings.TrimSpace(r.URL.Query().Get("erp"))

	exceptions, err := h.services.Penalties.ListExceptions(r.Context(), identity(r), erp)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, exceptions)
}

func (h *Handler) CreateRuleException(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRuleExceptionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	exception, err := h.services.Penalties.CreateException(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, exception)
}

func (h *Handler) DeleteRuleException(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Penalties.DeleteException(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Exception removed"})
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.services.Submissions.List(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, submissions)
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	submission, err := h.services.Submissions.Create(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, submission)
}

func (h *Handler) SetSubmissionActive(w http.ResponseWriter, r *http.Request) {
	var req models.SetActiveRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.services.Submissions.SetActive(r.Context(), identity(r), chi.URLParam(r, "id"), req.Active); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]bool{"active": req.Active})
}
