package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type RosterRepository interface {
	CheckRoster(ctx context.Context, erp string) (*models.RosterCheck, error)
	GetByERP(ctx context.Context, erp string) (*models.Student, error)
	GetByEmail(ctx context.Context, email string) (*models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	Count(ctx context.Context) (int, error)
	// Replace swaps the whole roster in one transaction.
	Replace(ctx context.Context, students []models.Student) error
}

type rosterRepository struct {
	*PostgresRepository
}

func NewRosterRepository(db *sql.DB, logger zerolog.Logger) RosterRepository {
	return &rosterRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const studentColumns = `erp, student_name, class_no, email, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*models.Student, error) {
	var s models.Student
	if err := row.Scan(&s.ERP, &s.StudentName, &s.ClassNo, &s.Email, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *rosterRepository) CheckRoster(ctx context.Context, erp string) (*models.RosterCheck, error) {
	query := `SELECT student_name, class_no FROM students_roster WHERE erp = $1`

	check := &models.RosterCheck{}
	err := r.db.QueryRowContext(ctx, query, erp).Scan(&check.StudentName, &check.ClassNo)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RosterCheck{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	check.Found = true
	return check, nil
}

func (r *rosterRepository) GetByERP(ctx context.Context, erp string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students_roster WHERE erp = $1`

	s, err := scanStudent(r.db.QueryRowContext(ctx, query, erp))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *rosterRepository) GetByEmail(ctx context.Context, email string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students_roster WHERE lower(email) = lower($1)`

	s, err := scanStudent(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *rosterRepository) List(ctx context.Context) ([]models.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students_roster
		ORDER BY class_no ASC, student_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []models.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

func (r *rosterRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students_roster`).Scan(&n)
	return n, err
}

func (r *rosterRepository) Replace(ctx context.Context, students []models.Student) error {
	return r.inTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM students_roster`); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO students_roster (erp, student_name, class_no, email, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range students {
			if _, err := stmt.ExecContext(ctx, s.ERP, s.StudentName, s.ClassNo, s.Email, s.CreatedAt); err != nil {
				return mapError(err)
			}
		}

		r.logger.Info().Int("students", len(students)).Msg("Roster replaced")
		return nil
	})
}
