package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

type AttendanceRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	// ReplaceSession deletes every row of the session and inserts rows in
	// the same transaction. It returns ErrRowCountChanged and writes nothing
	// when the session no longer holds exactly expected rows.
	ReplaceSession(ctx context.Context, sessionID string, expected int, rows []models.Attendance) error
	Upsert(ctx context.Context, row *models.Attendance) error
	SetNamingPenalty(ctx context.Context, sessionID, erp string, penalty bool, markedBy string, at time.Time) (bool, error)

	GetStudentAttendance(ctx context.Context, erp string) (*models.StudentAttendance, error)
	GetPublicBoard(ctx context.Context) (*models.AttendanceBoard, error)
}

type attendanceRepository struct {
	*PostgresRepository
}

func NewAttendanceRepository(db *sql.DB, logger zerolog.Logger) AttendanceRepository {
	return &attendanceRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *attendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	query := `
		SELECT id, session_id, student_erp, status, naming_penalty, marked_by, created_at, updated_at
		FROM attendance
		WHERE session_id = $1
		ORDER BY student_erp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Attendance{}
	for rows.Next() {
		var a models.Attendance
		err := rows.Scan(
			&a.ID,
			&a.SessionID,
			&a.StudentERP,
			&a.Status,
			&a.NamingPenalty,
			&a.MarkedBy,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *attendanceRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

func (r *attendanceRepository) ReplaceSession(ctx context.Context, sessionID string, expected int, rows []models.Attendance) error {
	ids := make([]string, len(rows))
	erps := make([]string, len(rows))
	statuses := make([]string, len(rows))
	markedBy := ""
	now := time.Now().UTC()
	for i, row := range rows {
		ids[i] = row.ID
		erps[i] = row.StudentERP
		statuses[i] = string(row.Status)
		markedBy = row.MarkedBy
		if !row.UpdatedAt.IsZero() {
			now = row.UpdatedAt
		}
	}

	return r.inTx(ctx, nil, func(tx *sql.Tx) error {
		// Concurrent replacements of one session queue on the session row.
		if _, err := tx.ExecContext(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID); err != nil {
			return err
		}
		var current int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance WHERE session_id = $1`, sessionID).Scan(&current); err != nil {
			return err
		}
		if current != expected {
			return fmt.Errorf("%w: expected %d, found %d", ErrRowCountChanged, expected, current)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE session_id = $1`, sessionID)
		if err != nil {
			return err
		}
		removed, _ := res.RowsAffected()

		if len(rows) > 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO attendance (id, session_id, student_erp, status, marked_by, created_at, updated_at)
				SELECT u.id::uuid, $1, u.erp, u.status, $5, $6, $6
				FROM unnest($2::text[], $3::text[], $4::text[]) AS u(id, erp, status)
			`,
				sessionID,
				pq.Array(ids),
				pq.Array(erps),
				pq.Array(statuses),
				markedBy,
				now,
			)
			if err != nil {
				return mapError(err)
			}
		}

		r.logger.Info().
			Str("session_id", sessionID).
			Int64("removed", removed).
			Int("inserted", len(rows)).
			Msg("Session attendance replaced")
		return nil
	})
}

func (r *attendanceRepository) Upsert(ctx context.Context, row *models.Attendance) error {
	query := `
		INSERT INTO attendance (id, session_id, student_erp, status, marked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (session_id, student_erp)
		DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		row.ID,
		row.SessionID,
		row.StudentERP,
		row.Status,
		row.MarkedBy,
		row.UpdatedAt,
	)

	return err
}

func (r *attendanceRepository) SetNamingPenalty(ctx context.Context, sessionID, erp string, penalty bool, markedBy string, at time.Time) (bool, error) {
	query := `
		UPDATE attendance
		SET naming_penalty = $1, marked_by = $2, updated_at = $3
		WHERE session_id = $4 AND student_erp = $5
	`

	res, err := r.db.ExecContext(ctx, query, penalty, markedBy, at, sessionID, erp)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *attendanceRepository) GetStudentAttendance(ctx context.Context, erp string) (*models.StudentAttendance, error) {
	query := `
		SELECT s.id, s.session_number, s.session_date, s.title,
			COALESCE(a.status, ''), COALESCE(a.naming_penalty, false)
		FROM sessions s
		LEFT JOIN attendance a ON a.session_id = s.id AND a.student_erp = $1
		ORDER BY s.session_number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, erp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &models.StudentAttendance{Records: []models.StudentAttendanceRecord{}}
	for rows.Next() {
		var rec models.StudentAttendanceRecord
		err := rows.Scan(
			&rec.SessionID,
			&rec.SessionNumber,
			&rec.SessionDate,
			&rec.Title,
			&rec.Status,
			&rec.NamingPenalty,
		)
		if err != nil {
			return nil, err
		}
		if rec.Status == models.StatusAbsent {
			out.TotalAbsences++
		}
		out.Records = append(out.Records, rec)
	}
	return out, rows.Err()
}

func (r *attendanceRepository) GetPublicBoard(ctx context.Context) (*models.AttendanceBoard, error) {
	board := &models.AttendanceBoard{
		Sessions: []models.BoardSession{},
		Students: []models.BoardStudent{},
	}

	sessionRows, err := r.db.QueryContext(ctx, `
		SELECT id, session_number, session_date, title
		FROM sessions
		ORDER BY session_number ASC
	`)
	if err != nil {
		return nil, err
	}
	defer sessionRows.Close()

	for sessionRows.Next() {
		var s models.BoardSession
		if err := sessionRows.Scan(&s.ID, &s.SessionNumber, &s.SessionDate, &s.Title); err != nil {
			return nil, err
		}
		board.Sessions = append(board.Sessions, s)
	}
	if err := sessionRows.Err(); err != nil {
		return nil, err
	}

	studentRows, err := r.db.QueryContext(ctx, `
		SELECT erp, student_name, class_no
		FROM students_roster
		ORDER BY class_no ASC, student_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer studentRows.Close()

	index := make(map[string]int)
	for studentRows.Next() {
		st := models.BoardStudent{Records: map[string]models.AttendanceStatus{}, Penalties: map[string]bool{}}
		if err := studentRows.Scan(&st.ERP, &st.StudentName, &st.ClassNo); err != nil {
			return nil, err
		}
		index[st.ERP] = len(board.Students)
		board.Students = append(board.Students, st)
	}
	if err := studentRows.Err(); err != nil {
		return nil, err
	}

	markRows, err := r.db.QueryContext(ctx, `SELECT session_id, student_erp, status, naming_penalty FROM attendance`)
	if err != nil {
		return nil, err
	}
	defer markRows.Close()

	for markRows.Next() {
		var (
			sessionID, erp string
			status         models.AttendanceStatus
			penalty        bool
		)
		if err := markRows.Scan(&sessionID, &erp, &status, &penalty); err != nil {
			return nil, err
		}
		i, ok := index[erp]
		if !ok {
			continue
		}
		st := &board.Students[i]
		st.Records[sessionID] = status
		if status == models.StatusAbsent {
			st.TotalAbsences++
		}
		if penalty {
			st.Penalties[sessionID] = true
			st.NamingPenalties++
		}
	}
	return board, markRows.Err()
}
