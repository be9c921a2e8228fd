package httpd

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
)

// ClaimResponse is the outcome of a claim together with the refreshed
// dashboard, so the client can redraw without another round trip.
type ClaimResponse struct {
	Result    *models.ClaimResult `json:"result"`
	Dashboard latedays.Dashboard  `json:"dashboard"`
}

func (h *Handler) LateDayDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.services.LateDays.Dashboard(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, dashboard)
}

func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitClaimRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	id := identity(r)
	snap, err := h.services.LateDays.Load(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	result, err := h.services.LateDays.SubmitClaim(r.Context(), id, snap, &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, ClaimResponse{Result: result, Dashboard: snap.Dashboard(h.now())})
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	assignments, err := h.services.Admin.ListAssignments(r.Context(), identity(r), includeArchived)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, assignments)
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssignmentRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	assignment, err := h.services.Admin.CreateAssignment(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, assignment)
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssignmentRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	assignment, err := h.services.Admin.UpdateAssignment(r.Context(), identity(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, assignment)
}

func (h *Handler) ArchiveAssignment(w http.ResponseWriter, r *http.Request) {
	err := h.services.Admin.ArchiveAssignment(r.Context(), identity(r), chi.URLParam(r, "id"), confirmParam(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Assignment archived"})
}

func (h *Handler) RestoreAssignment(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Admin.RestoreAssignment(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Assignment restored"})
}

func (h *Handler) ListAllClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.services.Admin.ListAllClaims(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, claims)
}

func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	err := h.services.Admin.DeleteClaim(r.Context(), identity(r), chi.URLParam(r, "id"), confirmParam(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, map[string]string{"message": "Claim deleted"})
}

func (h *Handler) GrantAdjustment(w http.ResponseWriter, r *http.Request) {
	var req models.GrantAdjustmentRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	adjustment, err := h.services.Admin.GrantAdjustment(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, adjustment)
}

func (h *Handler) StudentLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.services.Admin.StudentLedger(r.Context(), identity(r), chi.URLParam(r, "erp"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, ledger)
}
