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
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

type SessionService interface {
	List(ctx context.Context) ([]models.Session, error)
	Create(ctx context.Context, id auth.Identity, req *models.CreateSessionRequest) (*models.Session, error)
	// Delete removes a session and, through the foreign key, its attendance.
	Delete(ctx context.Context, id auth.Identity, sessionID string, confirmed bool) error
}

type sessionService struct {
	sessions   repository.SessionRepository
	attendance repository.AttendanceRepository
	validator  *validation.Validator
	publisher  notify.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	attendanceRepo repository.AttendanceRepository,
	validator *validation.Validator,
	publisher notify.Publisher,
	logger zerolog.Logger,
) SessionService {
	return &sessionService{
		sessions:   sessions,
		attendance: attendanceRepo,
		validator:  validator,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *sessionService) List(ctx context.Context) ([]models.Session, error) {
	return s.sessions.List(ctx)
}

func (s *sessionService) Create(ctx context.Context, id auth.Identity, req *models.CreateSessionRequest) (*models.Session, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:            ids.UUID(),
		SessionNumber: req.SessionNumber,
		SessionDate:   req.SessionDate.UTC(),
		Title:         strings.TrimSpace(req.Title),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, NewValidationError(fmt.Errorf("session %d already exists", req.SessionNumber), validation.FieldError{
				Field: "session_number",
				Error: "session_number is already in use",
			})
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	publish(ctx, s.publisher, s.logger, "sessions", models.ChangeInsert, session, map[string]string{"id": session.ID})
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id auth.Identity, sessionID string, confirmed bool) error {
	if err := requireTA(id); err != nil {
		return err
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}

	if !confirmed {
		rows, err := s.attendance.CountBySession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to count attendance: %w", err)
		}
		return &ConfirmationRequiredError{Prompt: fmt.Sprintf(
			"Delete session %s and its %d attendance row(s)? This cannot be undone.",
			attendance.SessionLabel(session.SessionNumber), rows,
		)}
	}

	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("session_number", session.SessionNumber).
		Str("deleted_by", id.Email).
		Msg("Session deleted")
	publish(ctx, s.publisher, s.logger, "sessions", models.ChangeDelete, session, map[string]string{"id": sessionID})
	return nil
}
