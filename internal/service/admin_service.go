package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

// StudentLedger is a TA's view of one student's late days.
type StudentLedger struct {
	Student   models.Student     `json:"student"`
	Dashboard latedays.Dashboard `json:"late_days"`
}

type AdminService interface {
	ListAssignments(ctx context.Context, id auth.Identity, includeArchived bool) ([]models.Assignment, error)
	CreateAssignment(ctx context.Context, id auth.Identity, req *models.CreateAssignmentRequest) (*models.Assignment, error)
	UpdateAssignment(ctx context.Context, id auth.Identity, assignmentID string, req *models.CreateAssignmentRequest) (*models.Assignment, error)
	ArchiveAssignment(ctx context.Context, id auth.Identity, assignmentID string, confirmed bool) error
	RestoreAssignment(ctx context.Context, id auth.Identity, assignmentID string) error

	ListAllClaims(ctx context.Context, id auth.Identity) ([]models.ClaimWithDetails, error)
	DeleteClaim(ctx context.Context, id auth.Identity, claimID string, confirmed bool) error
	GrantAdjustment(ctx context.Context, id auth.Identity, req *models.GrantAdjustmentRequest) (*models.Adjustment, error)
	StudentLedger(ctx context.Context, id auth.Identity, erp string) (*StudentLedger, error)
}

type adminService struct {
	lateDays  repository.LateDayRepository
	roster    repository.RosterRepository
	validator *validation.Validator
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAdminService(
	lateDays repository.LateDayRepository,
	roster repository.RosterRepository,
	validator *validation.Validator,
	publisher notify.Publisher,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		lateDays:  lateDays,
		roster:    roster,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *adminService) ListAssignments(ctx context.Context, id auth.Identity, includeArchived bool) ([]models.Assignment, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.lateDays.ListAssignments(ctx, includeArchived)
}

func (s *adminService) CreateAssignment(ctx context.Context, id auth.Identity, req *models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dueAt := req.DueAt.UTC()
	assignment := &models.Assignment{
		ID:        ids.UUID(),
		Title:     strings.TrimSpace(req.Title),
		DueAt:     &dueAt,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.lateDays.CreateAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID).
		Str("created_by", id.Email).
		Msg("Assignment created")
	publish(ctx, s.publisher, s.logger, "late_day_assignments", models.ChangeInsert, assignment, map[string]string{"id": assignment.ID})

	return assignment, nil
}

// UpdateAssignment changes title and deadline only. Claims keep the
// before/after deadlines they were made against.
func (s *adminService) UpdateAssignment(ctx context.Context, id auth.Identity, assignmentID string, req *models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	dueAt := req.DueAt.UTC()
	assignment.Title = strings.TrimSpace(req.Title)
	assignment.DueAt = &dueAt
	assignment.UpdatedAt = s.now().UTC()
	if err := s.lateDays.UpdateAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}

	publish(ctx, s.publisher, s.logger, "late_day_assignments", models.ChangeUpdate, assignment, map[string]string{"id": assignment.ID})
	return assignment, nil
}

func (s *adminService) ArchiveAssignment(ctx context.Context, id auth.Identity, assignmentID string, confirmed bool) error {
	if err := requireTA(id); err != nil {
		return err
	}
	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !assignment.Active {
		return ErrAlreadyArchived
	}
	if !confirmed {
		return &ConfirmationRequiredError{Prompt: fmt.Sprintf(
			"Archive %q? Students will no longer see it or claim late days for it. Existing claims are kept.",
			assignment.Title,
		)}
	}

	if err := s.lateDays.SetAssignmentActive(ctx, assignmentID, false, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to archive assignment: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("archived_by", id.Email).
		Msg("Assignment archived")
	assignment.Active = false
	publish(ctx, s.publisher, s.logger, "late_day_assignments", models.ChangeUpdate, assignment, map[string]string{"id": assignmentID})
	return nil
}

func (s *adminService) RestoreAssignment(ctx context.Context, id auth.Identity, assignmentID string) error {
	if err := requireTA(id); err != nil {
		return err
	}
	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment.Active {
		return nil
	}
	if err := s.lateDays.SetAssignmentActive(ctx, assignmentID, true, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to restore assignment: %w", err)
	}
	assignment.Active = true
	publish(ctx, s.publisher, s.logger, "late_day_assignments", models.ChangeUpdate, assignment, map[string]string{"id": assignmentID})
	return nil
}

func (s *adminService) getAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.lateDays.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	return assignment, nil
}

func (s *adminService) ListAllClaims(ctx context.Context, id auth.Identity) ([]models.ClaimWithDetails, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.lateDays.ListAllClaims(ctx)
}

// DeleteClaim removes one claim row. The balance picks the days back up on
// the next read; no other claim is touched.
func (s *adminService) DeleteClaim(ctx context.Context, id auth.Identity, claimID string, confirmed bool) error {
	if err := requireTA(id); err != nil {
		return err
	}
	claim, err := s.lateDays.GetClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("failed to get claim: %w", err)
	}
	if claim == nil {
		return ErrClaimNotFound
	}
	if !confirmed {
		return &ConfirmationRequiredError{Prompt: fmt.Sprintf(
			"Delete this claim of %d late day(s) by %s? The student's balance will be restored by %d day(s).",
			claim.DaysUsed, claim.StudentERP, claim.DaysUsed,
		)}
	}

	deleted, err := s.lateDays.DeleteClaim(ctx, claimID)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	if !deleted {
		return ErrClaimNotFound
	}

	s.logger.Info().
		Str("claim_id", claimID).
		Str("student_erp", claim.StudentERP).
		Int("days_restored", claim.DaysUsed).
		Str("deleted_by", id.Email).
		Msg("Late-day claim deleted")
	publish(ctx, s.publisher, s.logger, "late_day_claims", models.ChangeDelete, claim, map[string]string{
		"student_erp":   claim.StudentERP,
		"assignment_id": claim.AssignmentID,
	})
	return nil
}

func (s *adminService) GrantAdjustment(ctx context.Context, id auth.Identity, req *models.GrantAdjustmentRequest) (*models.Adjustment, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	adjustment := &models.Adjustment{
		ID:         ids.UUID(),
		StudentERP: strings.TrimSpace(req.StudentERP),
		DaysDelta:  req.DaysDelta,
		Reason:     strings.TrimSpace(req.Reason),
		CreatedBy:  id.Email,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.lateDays.AddLateDays(ctx, adjustment); err != nil {
		return nil, remoteError(err)
	}

	s.logger.Info().
		Str("student_erp", adjustment.StudentERP).
		Int("days_delta", adjustment.DaysDelta).
		Str("granted_by", id.Email).
		Msg("Late days granted")
	publish(ctx, s.publisher, s.logger, "late_day_adjustments", models.ChangeInsert, adjustment, map[string]string{"student_erp": adjustment.StudentERP})
	return adjustment, nil
}

func (s *adminService) StudentLedger(ctx context.Context, id auth.Identity, erp string) (*StudentLedger, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	student, err := s.roster.GetByERP(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	assignments, err := s.lateDays.ListAssignments(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	claims, err := s.lateDays.ListClaimsByStudent(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}
	adjustments, err := s.lateDays.ListAdjustmentsByStudent(ctx, erp)
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustments: %w", err)
	}

	snap := latedays.Snapshot{StudentERP: erp, Assignments: assignments, Claims: claims, Adjustments: adjustments}
	return &StudentLedger{Student: *student, Dashboard: snap.Dashboard(s.now())}, nil
}
