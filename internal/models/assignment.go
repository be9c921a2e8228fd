package models

import (
	"time"
)

// Assignment is a late-day eligible assignment. DueAt is the original deadline
// and stays nil until a TA sets one.
type Assignment struct {
	ID        string     `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	DueAt     *time.Time `json:"due_at" db:"due_at"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type Claim struct {
	ID               string    `json:"id" db:"id"`
	AssignmentID     string    `json:"assignment_id" db:"assignment_id"`
	StudentERP       string    `json:"student_erp" db:"student_erp"`
	DaysUsed         int       `json:"days_used" db:"days_used"`
	ClaimedAt        time.Time `json:"claimed_at" db:"claimed_at"`
	DueAtBeforeClaim time.Time `json:"due_at_before_claim" db:"due_at_before_claim"`
	DueAtAfterClaim  time.Time `json:"due_at_after_claim" db:"due_at_after_claim"`
}

// ClaimWithDetails is the TA-facing claim row.
type ClaimWithDetails struct {
	Claim
	StudentName     string `json:"student_name" db:"student_name"`
	AssignmentTitle string `json:"assignment_title" db:"assignment_title"`
}

// Adjustment is a TA grant of bonus late days. DaysDelta may be negative.
type Adjustment struct {
	ID         string    `json:"id" db:"id"`
	StudentERP string    `json:"student_erp" db:"student_erp"`
	DaysDelta  int       `json:"days_delta" db:"days_delta"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedBy  string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ClaimResult mirrors the claim procedure response. Claim is nil when the
// procedure did not return the inserted row.
type ClaimResult struct {
	Claim             *Claim `json:"claim,omitempty"`
	RemainingLateDays *int   `json:"remaining_late_days,omitempty"`
	TotalAllowance    *int   `json:"total_allowance,omitempty"`
}
