package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/latedays"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/obs"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

const (
	hw1 = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	hw2 = "2c5f39cb-3fb2-42e3-994f-1127e4ddb538"
)

var (
	student = auth.Identity{Email: "ayesha@khi.iba.edu.pk", Role: auth.RoleStudent, ERP: "10001"}
	ta      = auth.Identity{Email: "ta@iba.edu.pk", Role: auth.RoleTA}
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func atp(s string) *time.Time {
	t := at(s)
	return &t
}

func newLateDayFixture(now time.Time) (*lateDayService, *fakeLateDays, *recordingPublisher) {
	repo := newFakeLateDays()
	repo.assignments[hw1] = &models.Assignment{ID: hw1, Title: "HW1", DueAt: atp("2026-01-10T00:00:00Z"), Active: true}
	repo.assignments[hw2] = &models.Assignment{ID: hw2, Title: "HW2", Active: true}

	pub := &recordingPublisher{}
	svc := NewLateDayService(repo, &fakeSettings{}, validation.New(), pub, obs.New(), zerolog.Nop()).(*lateDayService)
	svc.now = func() time.Time { return now }
	return svc, repo, pub
}

func TestSubmitClaim_RollingExtension(t *testing.T) {
	ctx := context.Background()
	svc, repo, pub := newLateDayFixture(at("2026-01-10T00:00:00Z"))

	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)

	res, err := svc.SubmitClaim(ctx, student, snap, &models.SubmitClaimRequest{AssignmentID: hw1, Days: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Claim)
	assert.Equal(t, at("2026-01-12T00:00:00Z"), res.Claim.DueAtAfterClaim)
	require.Len(t, snap.Claims, 1, "confirmed claim is merged into the snapshot")
	assert.Equal(t, 1, snap.Balance().Remaining)

	svc.now = func() time.Time { return at("2026-01-11T00:00:00Z") }
	res, err = svc.SubmitClaim(ctx, student, snap, &models.SubmitClaimRequest{AssignmentID: hw1, Days: 1})
	require.NoError(t, err)
	assert.Equal(t, at("2026-01-12T00:00:00Z"), res.Claim.DueAtBeforeClaim)
	assert.Equal(t, at("2026-01-13T00:00:00Z"), res.Claim.DueAtAfterClaim)

	assert.Equal(t, 2, repo.claimCalls)
	assert.Equal(t, res.Claim.ID, snap.Claims[0].ID, "newest claim first")
	view, _ := snap.View(hw1, at("2026-01-11T00:00:00Z"))
	assert.Equal(t, latedays.NoBalance, view.Availability)
	assert.Equal(t, []string{"late_day_claims:INSERT", "late_day_claims:INSERT"}, pub.tables())
}

func TestSubmitClaim_LocalValidationSkipsRemoteCall(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  models.SubmitClaimRequest
	}{
		{name: "more than remaining", req: models.SubmitClaimRequest{AssignmentID: hw1, Days: 4}},
		{name: "zero days", req: models.SubmitClaimRequest{AssignmentID: hw1, Days: 0}},
		{name: "negative days", req: models.SubmitClaimRequest{AssignmentID: hw1, Days: -1}},
		{name: "awaiting deadline", req: models.SubmitClaimRequest{AssignmentID: hw2, Days: 1}},
		{name: "not a uuid", req: models.SubmitClaimRequest{AssignmentID: "hw1", Days: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitClaim(ctx, student, snap, &tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	assert.Zero(t, repo.claimCalls)
	assert.Empty(t, snap.Claims)
}

func TestSubmitClaim_ServerRejectionIsVerbatim(t *testing.T) {
	ctx := context.Background()
	svc, repo, pub := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)

	repo.claimErr = &repository.ProcedureError{Procedure: "claim_late_days", Message: "Only 1 late day(s) remaining"}
	_, err = svc.SubmitClaim(ctx, student, snap, &models.SubmitClaimRequest{AssignmentID: hw1, Days: 2})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Only 1 late day(s) remaining", remote.Error())
	assert.Empty(t, snap.Claims, "snapshot untouched on failure")
	assert.Empty(t, pub.tables())
}

func TestSubmitClaim_RefetchWhenRowMissing(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)

	remaining := 2
	repo.claimResult = &models.ClaimResult{RemainingLateDays: &remaining}
	repo.onClaim = func() {
		repo.claims = append(repo.claims, models.Claim{
			ID: "server-claim", AssignmentID: hw1, StudentERP: student.ERP, DaysUsed: 1,
			ClaimedAt:        at("2026-01-09T00:00:00Z"),
			DueAtBeforeClaim: at("2026-01-10T00:00:00Z"),
			DueAtAfterClaim:  at("2026-01-11T00:00:00Z"),
		})
	}

	_, err = svc.SubmitClaim(ctx, student, snap, &models.SubmitClaimRequest{AssignmentID: hw1, Days: 1})
	require.NoError(t, err)
	require.Len(t, snap.Claims, 1)
	assert.Equal(t, "server-claim", snap.Claims[0].ID)
	assert.Equal(t, 2, snap.Balance().Remaining)
}

func TestSubmitClaim_DiscardsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, repo, _ := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)

	repo.onClaim = cancel
	_, err = svc.SubmitClaim(ctx, student, snap, &models.SubmitClaimRequest{AssignmentID: hw1, Days: 1})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, snap.Claims)
}

func TestSubmitClaim_AccessChecks(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	snap, err := svc.Load(ctx, student)
	require.NoError(t, err)
	req := &models.SubmitClaimRequest{AssignmentID: hw1, Days: 1}

	_, err = svc.SubmitClaim(ctx, ta, snap, req)
	assert.ErrorIs(t, err, ErrForbidden)

	other := auth.Identity{Email: "b@khi.iba.edu.pk", Role: auth.RoleStudent, ERP: "10002"}
	_, err = svc.SubmitClaim(ctx, other, snap, req)
	assert.ErrorIs(t, err, ErrForbidden)

	svc.settings = &fakeSettings{values: map[string]string{SettingLateDaysEnabled: "false"}}
	_, err = svc.SubmitClaim(ctx, student, snap, req)
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestDashboard(t *testing.T) {
	svc, repo, _ := newLateDayFixture(at("2026-01-09T00:00:00Z"))
	repo.adjustments = []models.Adjustment{{ID: "adj", StudentERP: student.ERP, DaysDelta: 2}}

	dash, err := svc.Dashboard(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, 5, dash.Balance.Remaining)
	require.Len(t, dash.Assignments, 2)
	assert.Equal(t, latedays.Claimable, dash.Assignments[0].Availability)
	assert.Equal(t, latedays.AwaitingDeadline, dash.Assignments[1].Availability)
}
