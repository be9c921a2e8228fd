package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/attendance"
	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

type RosterService interface {
	CheckRoster(ctx context.Context, erp string) (*models.RosterCheck, error)
	List(ctx context.Context, id auth.Identity) ([]models.Student, error)
	// ReplaceRoster deletes every roster row and inserts req.Students in one
	// transaction. A non-empty roster is only replaced when req.Confirm is set.
	ReplaceRoster(ctx context.Context, id auth.Identity, req *models.ReplaceRosterRequest) (int, error)
	ImportCSV(ctx context.Context, id auth.Identity, r io.Reader, confirmed bool) (int, error)
}

type rosterService struct {
	roster    repository.RosterRepository
	validator *validation.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewRosterService(roster repository.RosterRepository, validator *validation.Validator, logger zerolog.Logger) RosterService {
	return &rosterService{
		roster:    roster,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *rosterService) CheckRoster(ctx context.Context, erp string) (*models.RosterCheck, error) {
	erp = strings.TrimSpace(erp)
	if erp == "" {
		return &models.RosterCheck{Found: false}, nil
	}
	return s.roster.CheckRoster(ctx, erp)
}

func (s *rosterService) List(ctx context.Context, id auth.Identity) ([]models.Student, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.roster.List(ctx)
}

func (s *rosterService) ReplaceRoster(ctx context.Context, id auth.Identity, req *models.ReplaceRosterRequest) (int, error) {
	if err := requireTA(id); err != nil {
		return 0, err
	}
	if err := validate(s.validator, req); err != nil {
		return 0, err
	}

	now := s.now().UTC()
	seen := make(map[string]int, len(req.Students))
	students := make([]models.Student, 0, len(req.Students))
	for i, e := range req.Students {
		erp := strings.TrimSpace(e.ERP)
		if prev, dup := seen[erp]; dup {
			return 0, NewValidationError(errInvalidRequest, validation.FieldError{
				Field: fmt.Sprintf("students[%d].erp", i),
				Error: fmt.Sprintf("erp %s is repeated (first at row %d)", erp, prev+1),
			})
		}
		seen[erp] = i
		students = append(students, models.Student{
			ERP:         erp,
			StudentName: strings.TrimSpace(e.StudentName),
			ClassNo:     strings.TrimSpace(e.ClassNo),
			Email:       strings.ToLower(strings.TrimSpace(e.Email)),
			CreatedAt:   now,
		})
	}

	current, err := s.roster.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count roster: %w", err)
	}
	if current > 0 && !req.Confirm {
		return 0, &ConfirmationRequiredError{Prompt: fmt.Sprintf(
			"Replace the roster? All %d current student(s) will be removed and %d imported.",
			current, len(students),
		)}
	}

	if err := s.roster.Replace(ctx, students); err != nil {
		return 0, remoteError(err)
	}

	s.logger.Info().
		Int("removed", current).
		Int("imported", len(students)).
		Str("replaced_by", id.Email).
		Msg("Roster replaced")
	return len(students), nil
}

func (s *rosterService) ImportCSV(ctx context.Context, id auth.Identity, r io.Reader, confirmed bool) (int, error) {
	if err := requireTA(id); err != nil {
		return 0, err
	}
	entries, err := attendance.ParseRosterCSV(r)
	if err != nil {
		return 0, NewValidationError(err)
	}
	return s.ReplaceRoster(ctx, id, &models.ReplaceRosterRequest{Students: entries, Confirm: confirmed})
}
