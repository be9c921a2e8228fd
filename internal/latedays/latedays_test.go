package latedays

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tp(s string) *time.Time {
	t := ts(s)
	return &t
}

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name        string
		claims      []models.Claim
		adjustments []models.Adjustment
		want        Balance
	}{
		{
			name: "empty logs",
			want: Balance{TotalAllowance: 3, Remaining: 3},
		},
		{
			name:   "claims only",
			claims: []models.Claim{{DaysUsed: 1}, {DaysUsed: 1}},
			want:   Balance{UsedDays: 2, TotalAllowance: 3, Remaining: 1},
		},
		{
			name:        "grants add to allowance",
			claims:      []models.Claim{{DaysUsed: 3}},
			adjustments: []models.Adjustment{{DaysDelta: 2}},
			want:        Balance{UsedDays: 3, GrantedDays: 2, TotalAllowance: 5, Remaining: 2},
		},
		{
			name:        "never negative",
			claims:      []models.Claim{{DaysUsed: 3}, {DaysUsed: 2}},
			adjustments: []models.Adjustment{{DaysDelta: -1}},
			want:        Balance{UsedDays: 5, GrantedDays: -1, TotalAllowance: 2, Remaining: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalance(tt.claims, tt.adjustments)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Remaining, 0)
		})
	}
}

func TestComputeBalance_RemainingFormula(t *testing.T) {
	for used := 0; used <= 8; used++ {
		for granted := -4; granted <= 4; granted++ {
			claims := make([]models.Claim, used)
			for i := range claims {
				claims[i] = models.Claim{DaysUsed: 1}
			}
			adj := []models.Adjustment{{DaysDelta: granted}}

			want := BaseAllowance + granted - used
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, ComputeBalance(claims, adj).Remaining, "used=%d granted=%d", used, granted)
		}
	}
}

func TestClassify(t *testing.T) {
	now := ts("2026-01-09T12:00:00Z")
	due := tp("2026-01-10T00:00:00Z")
	past := tp("2026-01-08T00:00:00Z")

	tests := []struct {
		name      string
		a         models.Assignment
		stats     Stats
		remaining int
		want      Availability
	}{
		{name: "archived wins over everything", a: models.Assignment{Active: false, DueAt: past}, remaining: 0, want: Archived},
		{name: "archived without deadline", a: models.Assignment{Active: false}, remaining: 3, want: Archived},
		{name: "no deadline no claims", a: models.Assignment{Active: true}, remaining: 3, want: AwaitingDeadline},
		{name: "closed before balance check", a: models.Assignment{Active: true, DueAt: past}, remaining: 0, want: Closed},
		{name: "no balance", a: models.Assignment{Active: true, DueAt: due}, remaining: 0, want: NoBalance},
		{name: "claimable", a: models.Assignment{Active: true, DueAt: due}, remaining: 2, want: Claimable},
		{
			name:      "prior claim supplies the deadline",
			a:         models.Assignment{Active: true},
			stats:     Stats{ClaimCount: 1, LatestClaimAt: past, LatestDueAt: due},
			remaining: 1,
			want:      Claimable,
		},
		{
			name:      "extended deadline keeps it open",
			a:         models.Assignment{Active: true, DueAt: past},
			stats:     Stats{ClaimCount: 1, LatestClaimAt: past, LatestDueAt: due},
			remaining: 1,
			want:      Claimable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.a, tt.stats, tt.remaining, now))
		})
	}
}

func TestClassify_DeadlineIsInclusive(t *testing.T) {
	due := ts("2026-01-10T00:00:00Z")
	a := models.Assignment{Active: true, DueAt: &due}

	assert.Equal(t, Claimable, Classify(a, Stats{}, 1, due))
	assert.Equal(t, Closed, Classify(a, Stats{}, 1, due.Add(time.Nanosecond)))
}

func TestGroupClaims(t *testing.T) {
	claims := []models.Claim{
		{ID: "c1", AssignmentID: "a1", DaysUsed: 1, ClaimedAt: ts("2026-01-01T00:00:00Z"), DueAtAfterClaim: ts("2026-01-11T00:00:00Z")},
		{ID: "c2", AssignmentID: "a1", DaysUsed: 2, ClaimedAt: ts("2026-01-05T00:00:00Z"), DueAtAfterClaim: ts("2026-01-13T00:00:00Z")},
		{ID: "c3", AssignmentID: "a2", DaysUsed: 1, ClaimedAt: ts("2026-01-02T00:00:00Z"), DueAtAfterClaim: ts("2026-02-02T00:00:00Z")},
	}

	got := GroupClaims(claims)
	require.Len(t, got, 2)

	a1 := got["a1"]
	assert.Equal(t, 3, a1.ClaimedDays)
	assert.Equal(t, 2, a1.ClaimCount)
	assert.Equal(t, ts("2026-01-05T00:00:00Z"), *a1.LatestClaimAt)
	assert.Equal(t, ts("2026-01-13T00:00:00Z"), *a1.LatestDueAt)

	a2 := got["a2"]
	assert.Equal(t, 1, a2.ClaimCount)
	assert.Equal(t, ts("2026-02-02T00:00:00Z"), *a2.LatestDueAt)
}

func TestGroupClaims_OrderIndependent(t *testing.T) {
	older := models.Claim{ID: "c1", AssignmentID: "a1", DaysUsed: 1, ClaimedAt: ts("2026-01-01T00:00:00Z"), DueAtAfterClaim: ts("2026-01-11T00:00:00Z")}
	newer := models.Claim{ID: "c2", AssignmentID: "a1", DaysUsed: 1, ClaimedAt: ts("2026-01-02T00:00:00Z"), DueAtAfterClaim: ts("2026-01-12T00:00:00Z")}

	a := GroupClaims([]models.Claim{older, newer})["a1"]
	b := GroupClaims([]models.Claim{newer, older})["a1"]
	assert.Equal(t, *a.LatestDueAt, *b.LatestDueAt)
	assert.Equal(t, ts("2026-01-12T00:00:00Z"), *a.LatestDueAt)
}

func TestPlanClaim_RollingExtension(t *testing.T) {
	a := models.Assignment{ID: "a1", Active: true, DueAt: tp("2026-01-10T00:00:00Z")}

	before, after, err := PlanClaim(a, Stats{}, 2)
	require.NoError(t, err)
	assert.Equal(t, ts("2026-01-10T00:00:00Z"), before)
	assert.Equal(t, ts("2026-01-12T00:00:00Z"), after)

	first := models.Claim{ID: "c1", AssignmentID: "a1", DaysUsed: 2, ClaimedAt: ts("2026-01-10T00:00:00Z"), DueAtBeforeClaim: before, DueAtAfterClaim: after}
	stats := GroupClaims([]models.Claim{first})["a1"]

	before, after, err = PlanClaim(a, stats, 1)
	require.NoError(t, err)
	assert.Equal(t, ts("2026-01-12T00:00:00Z"), before)
	assert.Equal(t, ts("2026-01-13T00:00:00Z"), after)
}

func TestPlanClaim_Errors(t *testing.T) {
	_, _, err := PlanClaim(models.Assignment{Active: true}, Stats{}, 1)
	assert.True(t, errors.Is(err, ErrNotClaimable))

	_, _, err = PlanClaim(models.Assignment{Active: true, DueAt: tp("2026-01-10T00:00:00Z")}, Stats{}, 0)
	assert.ErrorIs(t, err, ErrInvalidDays)
}

func TestValidateClaim(t *testing.T) {
	open := AssignmentView{Availability: Claimable, CanClaim: true}

	assert.NoError(t, ValidateClaim(open, 2, 2))
	assert.ErrorIs(t, ValidateClaim(open, 0, 2), ErrInvalidDays)
	assert.ErrorIs(t, ValidateClaim(open, -1, 2), ErrInvalidDays)
	assert.ErrorIs(t, ValidateClaim(open, 3, 2), ErrInsufficientBalance)
	assert.ErrorIs(t, ValidateClaim(AssignmentView{Availability: Closed}, 1, 3), ErrNotClaimable)
}

func TestSnapshot_DeleteRestoresBalance(t *testing.T) {
	s := &Snapshot{
		Assignments: []models.Assignment{{ID: "a1", Active: true, DueAt: tp("2026-01-10T00:00:00Z")}},
		Claims: []models.Claim{
			{ID: "c2", AssignmentID: "a1", DaysUsed: 1, ClaimedAt: ts("2026-01-10T00:00:00Z"), DueAtBeforeClaim: ts("2026-01-12T00:00:00Z"), DueAtAfterClaim: ts("2026-01-13T00:00:00Z")},
			{ID: "c1", AssignmentID: "a1", DaysUsed: 2, ClaimedAt: ts("2026-01-09T00:00:00Z"), DueAtBeforeClaim: ts("2026-01-10T00:00:00Z"), DueAtAfterClaim: ts("2026-01-12T00:00:00Z")},
		},
	}
	require.Equal(t, 0, s.Balance().Remaining)

	remaining := s.Claims[0]
	require.True(t, s.RemoveClaim("c1"))
	assert.Equal(t, 2, s.Balance().Remaining)
	assert.Equal(t, remaining, s.Claims[0], "other claim snapshots are untouched")
	assert.False(t, s.RemoveClaim("c1"))

	view, ok := s.View("a1", ts("2026-01-11T00:00:00Z"))
	require.True(t, ok)
	assert.Equal(t, ts("2026-01-13T00:00:00Z"), *view.EffectiveDueAt)
	assert.Equal(t, Claimable, view.Availability)
}

func TestSnapshot_PrependClaim(t *testing.T) {
	s := &Snapshot{
		Assignments: []models.Assignment{{ID: "a1", Active: true, DueAt: tp("2026-01-10T00:00:00Z")}},
	}
	now := ts("2026-01-09T00:00:00Z")

	view, _ := s.View("a1", now)
	require.True(t, view.CanClaim)

	s.PrependClaim(models.Claim{ID: "c1", AssignmentID: "a1", DaysUsed: 3, ClaimedAt: now, DueAtBeforeClaim: ts("2026-01-10T00:00:00Z"), DueAtAfterClaim: ts("2026-01-13T00:00:00Z")})
	s.PrependClaim(models.Claim{ID: "c1", AssignmentID: "a1", DaysUsed: 3, ClaimedAt: now, DueAtBeforeClaim: ts("2026-01-10T00:00:00Z"), DueAtAfterClaim: ts("2026-01-13T00:00:00Z")})
	require.Len(t, s.Claims, 1)

	view, _ = s.View("a1", now)
	assert.Equal(t, NoBalance, view.Availability)
	assert.Equal(t, 3, view.ClaimedDays)
	assert.Equal(t, ts("2026-01-13T00:00:00Z"), *view.EffectiveDueAt)

	dash := s.Dashboard(now)
	assert.Equal(t, 0, dash.Balance.Remaining)
	require.Len(t, dash.Assignments, 1)
	assert.False(t, dash.Assignments[0].CanClaim)
}
