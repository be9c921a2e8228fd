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

type SubmissionService interface {
	// List returns active links to students and every link to TAs.
	List(ctx context.Context, id auth.Identity) ([]models.Submission, error)
	Create(ctx context.Context, id auth.Identity, req *models.CreateSubmissionRequest) (*models.Submission, error)
	SetActive(ctx context.Context, id auth.Identity, submissionID string, active bool) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	validator   *validation.Validator
	logger      zerolog.Logger
	now         func() time.Time
}

func NewSubmissionService(submissions repository.SubmissionRepository, validator *validation.Validator, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		validator:   validator,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, id auth.Identity) ([]models.Submission, error) {
	return s.submissions.List(ctx, !id.IsTA())
}

func (s *submissionService) Create(ctx context.Context, id auth.Identity, req *models.CreateSubmissionRequest) (*models.Submission, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		ID:        ids.UUID(),
		Title:     strings.TrimSpace(req.Title),
		URL:       strings.TrimSpace(req.URL),
		DueAt:     req.DueAt,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info().Str("submission_id", submission.ID).Str("created_by", id.Email).Msg("Submission link created")
	return submission, nil
}

func (s *submissionService) SetActive(ctx context.Context, id auth.Identity, submissionID string, active bool) error {
	if err := requireTA(id); err != nil {
		return err
	}
	updated, err := s.submissions.SetActive(ctx, submissionID, active)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if !updated {
		return ErrSubmissionNotFound
	}
	return nil
}
