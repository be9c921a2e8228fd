package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

const ticketsTable = "tickets"

type TicketService interface {
	Create(ctx context.Context, id auth.Identity, req *models.CreateTicketRequest) (*models.Ticket, error)
	ListMine(ctx context.Context, id auth.Identity) ([]models.Ticket, error)
	ListAll(ctx context.Context, id auth.Identity, status string) ([]models.Ticket, error)
	Get(ctx context.Context, id auth.Identity, ticketID string) (*models.Ticket, error)
	Update(ctx context.Context, id auth.Identity, ticketID string, req *models.UpdateTicketRequest) (*models.Ticket, error)
}

type ticketService struct {
	tickets   repository.TicketRepository
	settings  repository.SettingsRepository
	validator *validation.Validator
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewTicketService(
	tickets repository.TicketRepository,
	settings repository.SettingsRepository,
	validator *validation.Validator,
	publisher notify.Publisher,
	logger zerolog.Logger,
) TicketService {
	return &ticketService{
		tickets:   tickets,
		settings:  settings,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func ticketColumns(t *models.Ticket) map[string]string {
	return map[string]string{
		"id":          t.ID,
		"student_erp": t.StudentERP,
		"status":      t.Status,
	}
}

func (s *ticketService) Create(ctx context.Context, id auth.Identity, req *models.CreateTicketRequest) (*models.Ticket, error) {
	if err := requireStudent(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	enabled, err := featureEnabled(ctx, s.settings, SettingTicketsEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !enabled {
		return nil, ErrFeatureDisabled
	}

	now := s.now().UTC()
	ticket := &models.Ticket{
		ID:           ids.UUID(),
		Reference:    ids.TicketReference(),
		StudentERP:   id.ERP,
		StudentEmail: id.Email,
		Category:     req.Category,
		Subject:      strings.TrimSpace(req.Subject),
		Description:  strings.TrimSpace(req.Description),
		Status:       models.TicketStatusOpen.String(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.logger.Info().
		Str("ticket_id", ticket.ID).
		Str("reference", ticket.Reference).
		Str("student_erp", ticket.StudentERP).
		Msg("Ticket created")
	publish(ctx, s.publisher, s.logger, ticketsTable, models.ChangeInsert, ticket, ticketColumns(ticket))
	return ticket, nil
}

func (s *ticketService) ListMine(ctx context.Context, id auth.Identity) ([]models.Ticket, error) {
	if err := requireStudent(id); err != nil {
		return nil, err
	}
	return s.tickets.ListByStudent(ctx, id.ERP)
}

func (s *ticketService) ListAll(ctx context.Context, id auth.Identity, status string) ([]models.Ticket, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if status != "" && !models.IsValidTicketStatus(status) {
		return nil, NewValidationError(errInvalidRequest, validation.FieldError{
			Field: "status",
			Error: "status must be one of [open in_progress resolved closed]",
		})
	}
	return s.tickets.ListAll(ctx, status)
}

// Get returns a ticket to a TA or to the student who raised it.
func (s *ticketService) Get(ctx context.Context, id auth.Identity, ticketID string) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	if !id.IsTA() && ticket.StudentERP != id.ERP {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

func (s *ticketService) Update(ctx context.Context, id auth.Identity, ticketID string, req *models.UpdateTicketRequest) (*models.Ticket, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	ticket, err := s.Get(ctx, id, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.Status = req.Status
	ticket.TAResponse = strings.TrimSpace(req.TAResponse)
	ticket.UpdatedAt = s.now().UTC()

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	s.logger.Info().
		Str("ticket_id", ticket.ID).
		Str("status", ticket.Status).
		Str("updated_by", id.Email).
		Msg("Ticket updated")
	publish(ctx, s.publisher, s.logger, ticketsTable, models.ChangeUpdate, ticket, ticketColumns(ticket))
	return ticket, nil
}
