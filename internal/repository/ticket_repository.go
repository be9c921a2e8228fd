package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	ListByStudent(ctx context.Context, erp string) ([]models.Ticket, error)
	// ListAll returns every ticket, optionally filtered by status.
	ListAll(ctx context.Context, status string) ([]models.Ticket, error)
	Update(ctx context.Context, ticket *models.Ticket) error
}

type ticketRepository struct {
	*PostgresRepository
}

func NewTicketRepository(db *sql.DB, logger zerolog.Logger) TicketRepository {
	return &ticketRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const ticketColumns = `id, reference, student_erp, student_email, category, subject, description, status, ta_response, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }, t *models.Ticket) error {
	return row.Scan(
		&t.ID,
		&t.Reference,
		&t.StudentERP,
		&t.StudentEmail,
		&t.Category,
		&t.Subject,
		&t.Description,
		&t.Status,
		&t.TAResponse,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.Reference,
		ticket.StudentERP,
		ticket.StudentEmail,
		ticket.Category,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.TAResponse,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)

	return mapError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	var t models.Ticket
	err := scanTicket(r.db.QueryRowContext(ctx, query, id), &t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ticketRepository) ListByStudent(ctx context.Context, erp string) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE student_erp = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, erp)
}

func (r *ticketRepository) ListAll(ctx context.Context, status string) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, status)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) Update(ctx context.Context, ticket *models.Ticket) error {
	query := `
		UPDATE tickets
		SET status = $1, ta_response = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		ticket.Status,
		ticket.TAResponse,
		ticket.UpdatedAt,
		ticket.ID,
	)

	return err
}
