package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/obs"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

type LateDayService interface {
	// Load reads the caller's assignments, claims and adjustments.
	Load(ctx context.Context, id auth.Identity) (*latedays.Snapshot, error)
	Dashboard(ctx context.Context, id auth.Identity) (*latedays.Dashboard, error)
	// SubmitClaim validates the request against snap, calls the claim
	// procedure and merges the confirmed claim into snap. snap is left
	// untouched on any failure or when ctx is cancelled before the result
	// is applied.
	SubmitClaim(ctx context.Context, id auth.Identity, snap *latedays.Snapshot, req *models.SubmitClaimRequest) (*models.ClaimResult, error)
}

type lateDayService struct {
	repo      repository.LateDayRepository
	settings  repository.SettingsRepository
	validator *validation.Validator
	publisher notify.Publisher
	metrics   *obs.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewLateDayService(
	repo repository.LateDayRepository,
	settings repository.SettingsRepository,
	validator *validation.Validator,
	publisher notify.Publisher,
	metrics *obs.Metrics,
	logger zerolog.Logger,
) LateDayService {
	return &lateDayService{
		repo:      repo,
		settings:  settings,
		validator: validator,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *lateDayService) Load(ctx context.Context, id auth.Identity) (*latedays.Snapshot, error) {
	if err := requireStudent(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id.ERP)
}

func (s *lateDayService) load(ctx context.Context, erp string) (*latedays.Snapshot, error) {
	assignments, err := s.repo.ListAssignments(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	claims, err := s.repo.ListClaimsByStudent(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}
	adjustments, err := s.repo.ListAdjustmentsByStudent(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustments: %w", err)
	}
	return &latedays.Snapshot{
		StudentERP:  erp,
		Assignments: assignments,
		Claims:      claims,
		Adjustments: adjustments,
	}, nil
}

func (s *lateDayService) Dashboard(ctx context.Context, id auth.Identity) (*latedays.Dashboard, error) {
	snap, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	dash := snap.Dashboard(s.now())
	return &dash, nil
}

func (s *lateDayService) SubmitClaim(ctx context.Context, id auth.Identity, snap *latedays.Snapshot, req *models.SubmitClaimRequest) (*models.ClaimResult, error) {
	if err := requireStudent(id); err != nil {
		return nil, err
	}
	if snap == nil || snap.StudentERP != id.ERP {
		return nil, ErrForbidden
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	enabled, err := featureEnabled(ctx, s.settings, SettingLateDaysEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !enabled {
		return nil, ErrFeatureDisabled
	}

	now := s.now()
	view, ok := snap.View(req.AssignmentID, now)
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	if err := latedays.ValidateClaim(view, req.Days, snap.Balance().Remaining); err != nil {
		s.metrics.ClaimRecorded(obs.OutcomeRejected, req.Days)
		return nil, NewValidationError(err)
	}

	result, err := s.repo.ClaimLateDays(ctx, id.ERP, req.AssignmentID, req.Days, now)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var procErr *repository.ProcedureError
		if errors.As(err, &procErr) {
			s.metrics.ClaimRecorded(obs.OutcomeRejected, req.Days)
			s.logger.Info().
				Str("student_erp", id.ERP).
				Str("assignment_id", req.AssignmentID).
				Str("reason", procErr.Message).
				Msg("Late-day claim rejected")
		} else {
			s.metrics.ClaimRecorded(obs.OutcomeError, req.Days)
		}
		return nil, remoteError(err)
	}
	s.metrics.ClaimRecorded(obs.OutcomeSuccess, req.Days)

	if result != nil && result.Claim != nil {
		snap.PrependClaim(*result.Claim)
		publish(ctx, s.publisher, s.logger, "late_day_claims", models.ChangeInsert, result.Claim, map[string]string{
			"student_erp":   result.Claim.StudentERP,
			"assignment_id": result.Claim.AssignmentID,
		})
		return result, nil
	}

	// The procedure did not return the row, so the outcome is reloaded
	// instead of guessed.
	fresh, err := s.load(ctx, id.ERP)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("claim recorded but refresh failed: %w", err)
	}
	*snap = *fresh
	if result == nil {
		result = &models.ClaimResult{}
	}
	return result, nil
}
