package httpd

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/models"
)

func (h *Handler) RequestStudentCode(w http.ResponseWriter, r *http.Request) {
	var req models.StudentCodeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	issued, err := h.services.Auth.RequestStudentCode(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"data":    issued,
	})
}

func (h *Handler) StudentSignIn(w http.ResponseWriter, r *http.Request) {
	var req models.StudentSignInRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.services.Auth.StudentSignIn(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, session)
}

func (h *Handler) TASignIn(w http.ResponseWriter, r *http.Request) {
	var req models.TASignInRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.services.Auth.TASignIn(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, session)
}

func (h *Handler) CheckTAAllowlist(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	allowed, err := h.services.Auth.CheckTAAllowlist(r.Context(), email)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]bool{"allowed": allowed})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, identity(r))
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Auth.SignOut(r.Context(), identity(r)); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Signed out"})
}

func (h *Handler) ListTAs(w http.ResponseWriter, r *http.Request) {
	tas, err := h.services.Auth.ListTAs(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, tas)
}

func (h *Handler) AllowTA(w http.ResponseWriter, r *http.Request) {
	var req models.AllowTARequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.services.Auth.AllowTA(r.Context(), req.Email); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, map[string]string{"email": strings.ToLower(strings.TrimSpace(req.Email))})
}

func (h *Handler) RemoveTA(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		h.handleError(w, r, badRequest("invalid email: %v", err))
		return
	}

	if err := h.services.Auth.RemoveTA(r.Context(), identity(r), email); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "TA removed"})
}

func (h *Handler) GetMyPassword(w http.ResponseWriter, r *http.Request) {
	password, err := h.services.Auth.GetMyPassword(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"password": password})
}

func (h *Handler) SetMyPassword(w http.ResponseWriter, r *http.Request) {
	var req models.SetPasswordRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.services.Auth.SetMyPassword(r.Context(), identity(r), &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Password updated"})
}
