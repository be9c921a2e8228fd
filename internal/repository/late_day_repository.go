package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
)

const (
	procClaimLateDays = "claim_late_days"
	procAddLateDay    = "ta_add_late_day"
)

type LateDayRepository interface {
	ListAssignments(ctx context.Context, includeArchived bool) ([]models.Assignment, error)
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
	UpdateAssignment(ctx context.Context, assignment *models.Assignment) error
	SetAssignmentActive(ctx context.Context, id string, active bool, updatedAt time.Time) error

	ListClaimsByStudent(ctx context.Context, erp string) ([]models.Claim, error)
	ListAllClaims(ctx context.Context) ([]models.ClaimWithDetails, error)
	GetClaim(ctx context.Context, id string) (*models.Claim, error)
	DeleteClaim(ctx context.Context, id string) (bool, error)

	ListAdjustmentsByStudent(ctx context.Context, erp string) ([]models.Adjustment, error)

	// ClaimLateDays is the only writer of claim rows. It re-validates the
	// claim under a serializable transaction with the student's roster row
	// locked, so concurrent claims by the same student are serialized.
	ClaimLateDays(ctx context.Context, erp, assignmentID string, days int, now time.Time) (*models.ClaimResult, error)
	// AddLateDays records a TA grant for a student on the roster.
	AddLateDays(ctx context.Context, adjustment *models.Adjustment) error
}

type lateDayRepository struct {
	*PostgresRepository
}

func NewLateDayRepository(db *sql.DB, logger zerolog.Logger) LateDayRepository {
	return &lateDayRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const assignmentColumns = `id, title, due_at, active, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	var due sql.NullTime
	if err := row.Scan(&a.ID, &a.Title, &due, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.DueAt = timePtr(due)
	return &a, nil
}

func (r *lateDayRepository) ListAssignments(ctx context.Context, includeArchived bool) ([]models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM late_day_assignments
		WHERE active OR $1
		ORDER BY due_at ASC NULLS LAST, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (r *lateDayRepository) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	return getAssignment(ctx, r.db, id, false)
}

func getAssignment(ctx context.Context, q queryer, id string, lock bool) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM late_day_assignments WHERE id = $1`
	if lock {
		query += ` FOR SHARE`
	}

	a, err := scanAssignment(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *lateDayRepository) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	query := `
		INSERT INTO late_day_assignments (id, title, due_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.Title,
		nullTime(assignment.DueAt),
		assignment.Active,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)

	return mapError(err)
}

func (r *lateDayRepository) UpdateAssignment(ctx context.Context, assignment *models.Assignment) error {
	query := `
		UPDATE late_day_assignments
		SET title = $1, due_at = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		assignment.Title,
		nullTime(assignment.DueAt),
		assignment.UpdatedAt,
		assignment.ID,
	)

	return err
}

func (r *lateDayRepository) SetAssignmentActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	query := `UPDATE late_day_assignments SET active = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, active, updatedAt, id)
	return err
}

const claimColumns = `id, assignment_id, student_erp, days_used, claimed_at, due_at_before_claim, due_at_after_claim`

func scanClaim(row interface{ Scan(...any) error }, c *models.Claim) error {
	return row.Scan(
		&c.ID,
		&c.AssignmentID,
		&c.StudentERP,
		&c.DaysUsed,
		&c.ClaimedAt,
		&c.DueAtBeforeClaim,
		&c.DueAtAfterClaim,
	)
}

func (r *lateDayRepository) ListClaimsByStudent(ctx context.Context, erp string) ([]models.Claim, error) {
	return listClaims(ctx, r.db, erp)
}

func listClaims(ctx context.Context, q queryer, erp string) ([]models.Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM late_day_claims
		WHERE student_erp = $1
		ORDER BY claimed_at DESC
	`

	rows, err := q.QueryContext(ctx, query, erp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []models.Claim{}
	for rows.Next() {
		var c models.Claim
		if err := scanClaim(rows, &c); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (r *lateDayRepository) ListAllClaims(ctx context.Context) ([]models.ClaimWithDetails, error) {
	query := `
		SELECT
			c.id, c.assignment_id, c.student_erp, c.days_used, c.claimed_at,
			c.due_at_before_claim, c.due_at_after_claim,
			COALESCE(s.student_name, ''), a.title
		FROM late_day_claims c
		JOIN late_day_assignments a ON a.id = c.assignment_id
		LEFT JOIN students_roster s ON s.erp = c.student_erp
		ORDER BY c.claimed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claims := []models.ClaimWithDetails{}
	for rows.Next() {
		var c models.ClaimWithDetails
		err := rows.Scan(
			&c.ID,
			&c.AssignmentID,
			&c.StudentERP,
			&c.DaysUsed,
			&c.ClaimedAt,
			&c.DueAtBeforeClaim,
			&c.DueAtAfterClaim,
			&c.StudentName,
			&c.AssignmentTitle,
		)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (r *lateDayRepository) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM late_day_claims WHERE id = $1`

	var c models.Claim
	err := scanClaim(r.db.QueryRowContext(ctx, query, id), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *lateDayRepository) DeleteClaim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM late_day_claims WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *lateDayRepository) ListAdjustmentsByStudent(ctx context.Context, erp string) ([]models.Adjustment, error) {
	return listAdjustments(ctx, r.db, erp)
}

func listAdjustments(ctx context.Context, q queryer, erp string) ([]models.Adjustment, error) {
	query := `
		SELECT id, student_erp, days_delta, reason, created_by, created_at
		FROM late_day_adjustments
		WHERE student_erp = $1
		ORDER BY created_at DESC
	`

	rows, err := q.QueryContext(ctx, query, erp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := []models.Adjustment{}
	for rows.Next() {
		var a models.Adjustment
		if err := rows.Scan(&a.ID, &a.StudentERP, &a.DaysDelta, &a.Reason, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

func (r *lateDayRepository) ClaimLateDays(ctx context.Context, erp, assignmentID string, days int, now time.Time) (*models.ClaimResult, error) {
	var result *models.ClaimResult

	err := r.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx,
			`SELECT erp FROM students_roster WHERE erp = $1 FOR UPDATE`, erp,
		).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return rejected(procClaimLateDays, "Student %s is not on the roster", erp)
		}
		if err != nil {
			return fmt.Errorf("lock roster row: %w", err)
		}

		assignment, err := getAssignment(ctx, tx, assignmentID, true)
		if err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if assignment == nil {
			return rejected(procClaimLateDays, "Assignment not found")
		}

		claims, err := listClaims(ctx, tx, erp)
		if err != nil {
			return fmt.Errorf("load claims: %w", err)
		}
		adjustments, err := listAdjustments(ctx, tx, erp)
		if err != nil {
			return fmt.Errorf("load adjustments: %w", err)
		}

		balance := latedays.ComputeBalance(claims, adjustments)
		stats := latedays.GroupClaims(claims)[assignmentID]

		switch latedays.Classify(*assignment, stats, balance.Remaining, now) {
		case latedays.Archived:
			return rejected(procClaimLateDays, "This assignment is archived")
		case latedays.AwaitingDeadline:
			return rejected(procClaimLateDays, "This assignment has no deadline yet")
		case latedays.Closed:
			return rejected(procClaimLateDays, "The deadline for this assignment has passed")
		case latedays.NoBalance:
			return rejected(procClaimLateDays, "You have no late days remaining")
		}
		if days <= 0 {
			return rejected(procClaimLateDays, "Late days must be a positive whole number")
		}
		if days > balance.Remaining {
			return rejected(procClaimLateDays, "Only %d late day(s) remaining", balance.Remaining)
		}

		before, after, err := latedays.PlanClaim(*assignment, stats, days)
		if err != nil {
			return rejected(procClaimLateDays, "%s", err.Error())
		}

		claim := &models.Claim{
			ID:               ids.UUID(),
			AssignmentID:     assignmentID,
			StudentERP:       erp,
			DaysUsed:         days,
			ClaimedAt:        now,
			DueAtBeforeClaim: before,
			DueAtAfterClaim:  after,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO late_day_claims (`+claimColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			claim.ID,
			claim.AssignmentID,
			claim.StudentERP,
			claim.DaysUsed,
			claim.ClaimedAt,
			claim.DueAtBeforeClaim,
			claim.DueAtAfterClaim,
		)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}

		remaining := balance.Remaining - days
		total := balance.TotalAllowance
		result = &models.ClaimResult{
			Claim:             claim,
			RemainingLateDays: &remaining,
			TotalAllowance:    &total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("student_erp", erp).
		Str("assignment_id", assignmentID).
		Int("days", days).
		Msg("Late days claimed")

	return result, nil
}

func (r *lateDayRepository) AddLateDays(ctx context.Context, adjustment *models.Adjustment) error {
	return r.inTx(ctx, nil, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM students_roster WHERE erp = $1)`, adjustment.StudentERP,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return rejected(procAddLateDay, "Student %s is not on the roster", adjustment.StudentERP)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO late_day_adjustments (id, student_erp, days_delta, reason, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			adjustment.ID,
			adjustment.StudentERP,
			adjustment.DaysDelta,
			adjustment.Reason,
			adjustment.CreatedBy,
			adjustment.CreatedAt,
		)
		return err
	})
}
