package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type TARepository interface {
	// IsAllowlisted backs the check_ta_allowlist procedure.
	IsAllowlisted(ctx context.Context, email string) (bool, error)
	Get(ctx context.Context, email string) (*models.TAAccount, error)
	List(ctx context.Context) ([]models.TAAccount, error)
	Add(ctx context.Context, email string, createdAt time.Time) error
	Remove(ctx context.Context, email string) (bool, error)
	// SetPasswordCipher stores an encrypted password. It reports false when
	// the email is not on the allowlist.
	SetPasswordCipher(ctx context.Context, email, cipher string) (bool, error)
}

type taRepository struct {
	*PostgresRepository
}

func NewTARepository(db *sql.DB, logger zerolog.Logger) TARepository {
	return &taRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *taRepository) IsAllowlisted(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ta_allowlist WHERE email = lower($1))`, email,
	).Scan(&ok)
	return ok, err
}

func (r *taRepository) Get(ctx context.Context, email string) (*models.TAAccount, error) {
	var (
		acc    models.TAAccount
		cipher sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT email, password_cipher, created_at FROM ta_allowlist WHERE email = lower($1)`, email,
	).Scan(&acc.Email, &cipher, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acc.PasswordCipher = cipher.String
	return &acc, nil
}

func (r *taRepository) List(ctx context.Context) ([]models.TAAccount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email, created_at FROM ta_allowlist ORDER BY email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.TAAccount{}
	for rows.Next() {
		var acc models.TAAccount
		if err := rows.Scan(&acc.Email, &acc.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *taRepository) Add(ctx context.Context, email string, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ta_allowlist (email, created_at)
		VALUES (lower($1), $2)
		ON CONFLICT (email) DO NOTHING
	`, email, createdAt)
	return err
}

func (r *taRepository) Remove(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ta_allowlist WHERE email = lower($1)`, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *taRepository) SetPasswordCipher(ctx context.Context, email, cipher string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ta_allowlist SET password_cipher = $1 WHERE email = lower($2)`, cipher, email,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
