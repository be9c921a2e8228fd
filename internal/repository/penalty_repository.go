package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type PenaltyRepository interface {
	ListTypes(ctx context.Context) ([]models.PenaltyType, error)
	TypeExists(ctx context.Context, id string) (bool, error)
	CreateException(ctx context.Context, exception *models.RuleException) error
	// ListExceptions filters by student when erp is non-empty.
	ListExceptions(ctx context.Context, erp string) ([]models.RuleException, error)
	DeleteException(ctx context.Context, id string) (bool, error)
}

type penaltyRepository struct {
	*PostgresRepository
}

func NewPenaltyRepository(db *sql.DB, logger zerolog.Logger) PenaltyRepository {
	return &penaltyRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *penaltyRepository) ListTypes(ctx context.Context) ([]models.PenaltyType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name, description FROM penalty_types ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []models.PenaltyType{}
	for rows.Next() {
		var p models.PenaltyType
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		types = append(types, p)
	}
	return types, rows.Err()
}

func (r *penaltyRepository) TypeExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM penalty_types WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *penaltyRepository) CreateException(ctx context.Context, exception *models.RuleException) error {
	query := `
		INSERT INTO rule_exceptions (id, student_erp, penalty_type_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		exception.ID,
		exception.StudentERP,
		exception.PenaltyTypeID,
		exception.Reason,
		exception.CreatedAt,
	)

	return mapError(err)
}

func (r *penaltyRepository) ListExceptions(ctx context.Context, erp string) ([]models.RuleException, error) {
	query := `
		SELECT id, student_erp, penalty_type_id, reason, created_at
		FROM rule_exceptions
		WHERE $1 = '' OR student_erp = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, erp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RuleException{}
	for rows.Next() {
		var e models.RuleException
		if err := rows.Scan(&e.ID, &e.StudentERP, &e.PenaltyTypeID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *penaltyRepository) DeleteException(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rule_exceptions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
