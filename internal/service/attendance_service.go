package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/attendance"
	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/obs"
	"github.com/courseportal/portal/internal/repository"
)

var (
	ErrEmptyRoster        = errors.New("the roster is empty; import students before marking attendance")
	ErrAttendanceNotFound = errors.New("attendance record not found")
)

// BulkMarkOutcome summarises a written bulk mark.
type BulkMarkOutcome struct {
	SessionID string   `json:"session_id"`
	Present   int      `json:"present"`
	Absent    int      `json:"absent"`
	Replaced  int      `json:"replaced"`
	Unmatched []string `json:"unmatched"`
}

type AttendanceService interface {
	SessionAttendance(ctx context.Context, id auth.Identity, sessionID string) ([]models.Attendance, error)
	// BulkMark overwrites a session's attendance from an absentee list. An
	// existing row set is only replaced when confirmed is true.
	BulkMark(ctx context.Context, id auth.Identity, sessionID, absentList string, confirmed bool) (*BulkMarkOutcome, error)
	// CycleStatus moves one student to the next manual status.
	CycleStatus(ctx context.Context, id auth.Identity, sessionID, erp string) (*models.Attendance, error)
	SetNamingPenalty(ctx context.Context, id auth.Identity, sessionID, erp string, penalty bool) error
	MyAttendance(ctx context.Context, id auth.Identity) (*models.StudentAttendance, error)
}

type attendanceService struct {
	attendance repository.AttendanceRepository
	sessions   repository.SessionRepository
	roster     repository.RosterRepository
	publisher  notify.Publisher
	metrics    *obs.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func NewAttendanceService(
	attendanceRepo repository.AttendanceRepository,
	sessions repository.SessionRepository,
	roster repository.RosterRepository,
	publisher notify.Publisher,
	metrics *obs.Metrics,
	logger zerolog.Logger,
) AttendanceService {
	return &attendanceService{
		attendance: attendanceRepo,
		sessions:   sessions,
		roster:     roster,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *attendanceService) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *attendanceService) SessionAttendance(ctx context.Context, id auth.Identity, sessionID string) ([]models.Attendance, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.attendance.ListBySession(ctx, sessionID)
}

func (s *attendanceService) BulkMark(ctx context.Context, id auth.Identity, sessionID, absentList string, confirmed bool) (*BulkMarkOutcome, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	if len(roster) == 0 {
		return nil, NewValidationError(ErrEmptyRoster)
	}

	existing, err := s.attendance.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}

	result := attendance.BulkMark(roster, absentList)
	if existing > 0 && !confirmed {
		return nil, overwritePrompt(session, existing, result)
	}

	now := s.now().UTC()
	rows := make([]models.Attendance, 0, len(result.Marks))
	for _, m := range result.Marks {
		rows = append(rows, models.Attendance{
			ID:         ids.UUID(),
			SessionID:  sessionID,
			StudentERP: m.StudentERP,
			Status:     m.Status,
			MarkedBy:   id.Email,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := s.attendance.ReplaceSession(ctx, sessionID, existing, rows); err != nil {
		if errors.Is(err, repository.ErrRowCountChanged) {
			current, cerr := s.attendance.CountBySession(ctx, sessionID)
			if cerr != nil {
				return nil, fmt.Errorf("failed to count attendance: %w", cerr)
			}
			s.logger.Warn().
				Str("session_id", sessionID).
				Int("counted", existing).
				Int("current", current).
				Msg("Attendance changed before bulk mark was written")
			return nil, overwritePrompt(session, current, result)
		}
		return nil, fmt.Errorf("failed to replace attendance: %w", err)
	}
	s.metrics.BulkMarkRecorded(result.Present, result.Absent)

	outcome := &BulkMarkOutcome{
		SessionID: sessionID,
		Present:   result.Present,
		Absent:    result.Absent,
		Replaced:  existing,
		Unmatched: result.Unmatched,
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("present", outcome.Present).
		Int("absent", outcome.Absent).
		Int("replaced", existing).
		Int("unmatched", len(outcome.Unmatched)).
		Str("marked_by", id.Email).
		Msg("Attendance bulk marked")
	publish(ctx, s.publisher, s.logger, "attendance", models.ChangeUpdate, outcome, map[string]string{"session_id": sessionID})

	return outcome, nil
}

func overwritePrompt(session *models.Session, existing int, result attendance.BulkResult) *ConfirmationRequiredError {
	return &ConfirmationRequiredError{Prompt: fmt.Sprintf(
		"Session %s already has %d attendance row(s). Delete them and mark %d present and %d absent?",
		attendance.SessionLabel(session.SessionNumber), existing, result.Present, result.Absent,
	)}
}

func (s *attendanceService) CycleStatus(ctx context.Context, id auth.Identity, sessionID, erp string) (*models.Attendance, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	erp = strings.TrimSpace(erp)
	student, err := s.roster.GetByERP(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	rows, err := s.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	current := models.StatusUnmarked
	for _, r := range rows {
		if r.StudentERP == erp {
			current = r.Status
			break
		}
	}

	now := s.now().UTC()
	row := &models.Attendance{
		ID:         ids.UUID(),
		SessionID:  sessionID,
		StudentERP: erp,
		Status:     attendance.NextStatus(current),
		MarkedBy:   id.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.attendance.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}

	publish(ctx, s.publisher, s.logger, "attendance", models.ChangeUpdate, row, map[string]string{
		"session_id":  sessionID,
		"student_erp": erp,
	})
	return row, nil
}

// SetNamingPenalty flags or clears a naming penalty on an existing row. It
// never changes the attendance status.
func (s *attendanceService) SetNamingPenalty(ctx context.Context, id auth.Identity, sessionID, erp string, penalty bool) error {
	if err := requireTA(id); err != nil {
		return err
	}
	updated, err := s.attendance.SetNamingPenalty(ctx, sessionID, strings.TrimSpace(erp), penalty, id.Email, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set naming penalty: %w", err)
	}
	if !updated {
		return ErrAttendanceNotFound
	}

	publish(ctx, s.publisher, s.logger, "attendance", models.ChangeUpdate, map[string]any{
		"session_id":     sessionID,
		"student_erp":    erp,
		"naming_penalty": penalty,
	}, map[string]string{"session_id": sessionID, "student_erp": erp})
	return nil
}

func (s *attendanceService) MyAttendance(ctx context.Context, id auth.Identity) (*models.StudentAttendance, error) {
	if err := requireStudent(id); err != nil {
		return nil, err
	}
	return s.attendance.GetStudentAttendance(ctx, id.ERP)
}
