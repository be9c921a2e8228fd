package httpd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/courseportal/portal/internal/models"
)

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTicketRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	ticket, err := h.services.Tickets.Create(r.Context(), identity(r), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeCreated(w, ticket)
}

func (h *Handler) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.services.Tickets.ListMine(r.Context(), identity(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, tickets)
}

func (h *Handler) ListAllTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.services.Tickets.ListAll(r.Context(), identity(r), r.URL.Query().Get("status"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, tickets)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.services.Tickets.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, ticket)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTicketRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	ticket, err := h.services.Tickets.Update(r.Context(), identity(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeSuccess(w, ticket)
}
