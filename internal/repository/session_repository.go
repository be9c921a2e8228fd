package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]models.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type sessionRepository struct {
	*PostgresRepository
}

func NewSessionRepository(db *sql.DB, logger zerolog.Logger) SessionRepository {
	return &sessionRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, session_number, session_date, title, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.SessionNumber,
		session.SessionDate,
		session.Title,
		session.CreatedAt,
	)

	return mapError(err)
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, session_number, session_date, title, created_at FROM sessions WHERE id = $1`

	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.SessionNumber, &s.SessionDate, &s.Title, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepository) List(ctx context.Context) ([]models.Session, error) {
	query := `
		SELECT id, session_number, session_date, title, created_at
		FROM sessions
		ORDER BY session_number ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.SessionNumber, &s.SessionDate, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session; its attendance rows go with it.
func (r *sessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
