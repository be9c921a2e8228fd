package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type SubmissionRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	SetActive(ctx context.Context, id string, active bool) (bool, error)
}

type submissionRepository struct {
	*PostgresRepository
}

func NewSubmissionRepository(db *sql.DB, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *submissionRepository) List(ctx context.Context, activeOnly bool) ([]models.Submission, error) {
	query := `
		SELECT id, title, url, due_at, active, created_at
		FROM submissions_list
		WHERE active OR NOT $1
		ORDER BY due_at ASC NULLS LAST, created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Submission{}
	for rows.Next() {
		var (
			s   models.Submission
			due sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.URL, &due, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.DueAt = timePtr(due)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	query := `
		INSERT INTO submissions_list (id, title, url, due_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		submission.ID,
		submission.Title,
		submission.URL,
		nullTime(submission.DueAt),
		submission.Active,
		submission.CreatedAt,
	)

	return err
}

func (r *submissionRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE submissions_list SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
