package httpd

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/models"
)

func (h *Handler) PublicBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.services.Board.PublicBoard(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, board)
}

func (h *Handler) ExportAttendance(w http.ResponseWriter, r *http.Request) {
	withPenalties, _ := strconv.ParseBool(r.URL.Query().Get("penalties"))

	export, err := h.services.Board.ExportCSV(r.Context(), identity(r), withPenalties)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	if export.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", export.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Content)
}

func (h *Handler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	attendance, err := h.services.Attendance.MyAttendance(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, attendance)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.services.Sessions.List(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, sessions)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.services.Sessions.Create(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, session)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.services.Sessions.Delete(r.Context(), identity(r), chi.URLParam(r, "id"), confirmParam(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Session deleted"})
}

func (h *Handler) SessionAttendance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.services.Attendance.SessionAttendance(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, rows)
}

func (h *Handler) BulkMark(w http.ResponseWriter, r *http.Request) {
	var req models.BulkMarkRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	outcome, err := h.services.Attendance.BulkMark(r.Context(), identity(r), chi.URLParam(r, "id"), req.AbsentList, req.Confirm)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, outcome)
}

func (h *Handler) CycleStatus(w http.ResponseWriter, r *http.Request) {
	var req models.CycleStatusRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	row, err := h.services.Attendance.CycleStatus(r.Context(), identity(r), chi.URLParam(r, "id"), req.StudentERP)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, row)
}

func (h *Handler) SetNamingPenalty(w http.ResponseWriter, r *http.Request) {
	var req models.NamingPenaltyRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	err := h.services.Attendance.SetNamingPenalty(r.Context(), identity(r), chi.URLParam(r, "id"), req.StudentERP, req.NamingPenalty)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]interface{}{
		"student_erp":    req.StudentERP,
		"naming_penalty": req.NamingPenalty,
	})
}
