package latedays

import (
	"time"

	"github.com/courseportal/portal/internal/models"
)

// Snapshot is the late-day state loaded for one student. Claims are kept
// newest first.
type Snapshot struct {
	StudentERP  string              `json:"student_erp"`
	Assignments []models.Assignment `json:"assignments"`
	Claims      []models.Claim      `json:"claims"`
	Adjustments []models.Adjustment `json:"adjustments"`
}

func (s *Snapshot) Balance() Balance {
	return ComputeBalance(s.Claims, s.Adjustments)
}

func (s *Snapshot) Views(now time.Time) []AssignmentView {
	return Evaluate(s.Assignments, s.Claims, s.Balance().Remaining, now)
}

// View returns the current view of a single assignment.
func (s *Snapshot) View(assignmentID string, now time.Time) (AssignmentView, bool) {
	for _, a := range s.Assignments {
		if a.ID != assignmentID {
			continue
		}
		stats := GroupClaims(s.Claims)[assignmentID]
		return newView(a, stats, s.Balance().Remaining, now), true
	}
	return AssignmentView{}, false
}

// PrependClaim merges a confirmed claim into the history. A claim already
// present is replaced in place.
func (s *Snapshot) PrependClaim(c models.Claim) {
	for i := range s.Claims {
		if s.Claims[i].ID == c.ID {
			s.Claims[i] = c
			return
		}
	}
	s.Claims = append([]models.Claim{c}, s.Claims...)
}

// RemoveClaim drops a claim by id and reports whether it was present.
func (s *Snapshot) RemoveClaim(id string) bool {
	for i := range s.Claims {
		if s.Claims[i].ID == id {
			s.Claims = append(s.Claims[:i], s.Claims[i+1:]...)
			return true
		}
	}
	return false
}

// Dashboard is the rendered late-day state returned to a student.
type Dashboard struct {
	Balance     Balance             `json:"balance"`
	Assignments []AssignmentView    `json:"assignments"`
	Claims      []models.Claim      `json:"claims"`
	Adjustments []models.Adjustment `json:"adjustments"`
}

func (s *Snapshot) Dashboard(now time.Time) Dashboard {
	return Dashboard{
		Balance:     s.Balance(),
		Assignments: s.Views(now),
		Claims:      s.Claims,
		Adjustments: s.Adjustments,
	}
}
