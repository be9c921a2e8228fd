package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

// PenaltyService manages the penalty catalogue and per-student exemptions.
// It is separate from attendance marking.
type PenaltyService interface {
	ListTypes(ctx context.Context, id auth.Identity) ([]models.PenaltyType, error)
	ListExceptions(ctx context.Context, id auth.Identity, erp string) ([]models.RuleException, error)
	CreateException(ctx context.Context, id auth.Identity, req *models.CreateRuleExceptionRequest) (*models.RuleException, error)
	DeleteException(ctx context.Context, id auth.Identity, exceptionID string) error
}

type penaltyService struct {
	penalties repository.PenaltyRepository
	roster    repository.RosterRepository
	validator *validation.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewPenaltyService(penalties repository.PenaltyRepository, roster repository.RosterRepository, validator *validation.Validator, logger zerolog.Logger) PenaltyService {
	return &penaltyService{
		penalties: penalties,
		roster:    roster,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *penaltyService) ListTypes(ctx context.Context, id auth.Identity) ([]models.PenaltyType, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.penalties.ListTypes(ctx)
}

func (s *penaltyService) ListExceptions(ctx context.Context, id auth.Identity, erp string) ([]models.RuleException, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.penalties.ListExceptions(ctx, strings.TrimSpace(erp))
}

func (s *penaltyService) CreateException(ctx context.Context, id auth.Identity, req *models.CreateRuleExceptionRequest) (*models.RuleException, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	exists, err := s.penalties.TypeExists(ctx, req.PenaltyTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check penalty type: %w", err)
	}
	if !exists {
		return nil, ErrPenaltyNotFound
	}
	erp := strings.TrimSpace(req.StudentERP)
	student, err := s.roster.GetByERP(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	exception := &models.RuleException{
		ID:            ids.UUID(),
		StudentERP:    erp,
		PenaltyTypeID: req.PenaltyTypeID,
		Reason:        strings.TrimSpace(req.Reason),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.penalties.CreateException(ctx, exception); err != nil {
		return nil, remoteError(err)
	}

	s.logger.Info().
		Str("student_erp", erp).
		Str("penalty_type_id", req.PenaltyTypeID).
		Str("created_by", id.Email).
		Msg("Rule exception created")
	return exception, nil
}

func (s *penaltyService) DeleteException(ctx context.Context, id auth.Identity, exceptionID string) error {
	if err := requireTA(id); err != nil {
		return err
	}
	deleted, err := s.penalties.DeleteException(ctx, exceptionID)
	if err != nil {
		return fmt.Errorf("failed to delete rule exception: %w", err)
	}
	if !deleted {
		return ErrExceptionNotFound
	}
	return nil
}
