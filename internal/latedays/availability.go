package latedays

import (
	"errors"
	"fmt"
	"time"

	"github.com/courseportal/portal/internal/models"
)

type Availability string

const (
	Claimable        Availability = "claimable"
	AwaitingDeadline Availability = "awaiting_deadline"
	Closed           Availability = "closed"
	NoBalance        Availability = "no_balance"
	Archived         Availability = "archived"
)

func (a Availability) String() string {
	return string(a)
}

var (
	ErrNotClaimable        = errors.New("assignment is not claimable")
	ErrInvalidDays         = errors.New("late days must be a positive whole number")
	ErrInsufficientBalance = errors.New("not enough late days remaining")
)

// Stats aggregates one student's claims against one assignment.
type Stats struct {
	ClaimedDays   int        `json:"claimed_days"`
	ClaimCount    int        `json:"claim_count"`
	LatestClaimAt *time.Time `json:"latest_claim_at,omitempty"`

	// LatestDueAt is due_at_after_claim of the most recent claim.
	LatestDueAt *time.Time `json:"-"`
}

// GroupClaims builds per-assignment stats in a single pass over claims.
// The most recent claim is the one with the latest claimed_at; equal
// timestamps fall back to the later due_at_after_claim.
func GroupClaims(claims []models.Claim) map[string]Stats {
	out := make(map[string]Stats)
	for _, c := range claims {
		s := out[c.AssignmentID]
		s.ClaimedDays += c.DaysUsed
		s.ClaimCount++
		if isNewer(c, s) {
			claimedAt := c.ClaimedAt
			dueAfter := c.DueAtAfterClaim
			s.LatestClaimAt = &claimedAt
			s.LatestDueAt = &dueAfter
		}
		out[c.AssignmentID] = s
	}
	return out
}

func isNewer(c models.Claim, s Stats) bool {
	if s.LatestClaimAt == nil {
		return true
	}
	if c.ClaimedAt.Equal(*s.LatestClaimAt) {
		return c.DueAtAfterClaim.After(*s.LatestDueAt)
	}
	return c.ClaimedAt.After(*s.LatestClaimAt)
}

// EffectiveDeadline is the deadline currently in force for the student: the
// after-claim deadline of their latest claim, or the assignment's own due_at.
func EffectiveDeadline(a models.Assignment, s Stats) *time.Time {
	if s.LatestDueAt != nil {
		d := *s.LatestDueAt
		return &d
	}
	if a.DueAt != nil {
		d := *a.DueAt
		return &d
	}
	return nil
}

// Classify returns the availability of an assignment. Checks run in a fixed
// order and the first match wins.
func Classify(a models.Assignment, s Stats, remaining int, now time.Time) Availability {
	if !a.Active {
		return Archived
	}
	deadline := EffectiveDeadline(a, s)
	if deadline == nil {
		return AwaitingDeadline
	}
	if now.After(*deadline) {
		return Closed
	}
	if remaining <= 0 {
		return NoBalance
	}
	return Claimable
}

type AssignmentView struct {
	Assignment     models.Assignment `json:"assignment"`
	EffectiveDueAt *time.Time        `json:"effective_due_at"`
	Availability   Availability      `json:"availability"`
	CanClaim       bool              `json:"can_claim"`
	Stats
}

func newView(a models.Assignment, s Stats, remaining int, now time.Time) AssignmentView {
	availability := Classify(a, s, remaining, now)
	return AssignmentView{
		Assignment:     a,
		EffectiveDueAt: EffectiveDeadline(a, s),
		Availability:   availability,
		CanClaim:       availability == Claimable,
		Stats:          s,
	}
}

// Evaluate builds the view of every assignment for one student. O(n) in the
// number of claims plus assignments.
func Evaluate(assignments []models.Assignment, claims []models.Claim, remaining int, now time.Time) []AssignmentView {
	grouped := GroupClaims(claims)
	views := make([]AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, newView(a, grouped[a.ID], remaining, now))
	}
	return views
}

// ValidateClaim checks a requested claim against the view and balance.
func ValidateClaim(view AssignmentView, days, remaining int) error {
	if view.Availability != Claimable {
		return fmt.Errorf("%w: %s", ErrNotClaimable, view.Availability)
	}
	if days <= 0 {
		return ErrInvalidDays
	}
	if days > remaining {
		return fmt.Errorf("%w: requested %d, remaining %d", ErrInsufficientBalance, days, remaining)
	}
	return nil
}

// PlanClaim computes the before/after deadline snapshot for a claim. The
// extension starts from the current effective deadline, not from now.
func PlanClaim(a models.Assignment, s Stats, days int) (before, after time.Time, err error) {
	if days <= 0 {
		return time.Time{}, time.Time{}, ErrInvalidDays
	}
	deadline := EffectiveDeadline(a, s)
	if deadline == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrNotClaimable, AwaitingDeadline)
	}
	return *deadline, Extend(*deadline, days), nil
}
