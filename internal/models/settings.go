package models

import (
	"time"
)

type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Submission is a submission link published to students.
type Submission struct {
	ID        string     `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	URL       string     `json:"url" db:"url"`
	DueAt     *time.Time `json:"due_at,omitempty" db:"due_at"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type PenaltyType struct {
	ID          string `json:"id" db:"id"`
	Code        string `json:"code" db:"code"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// RuleException exempts one student from one penalty type.
type RuleException struct {
	ID            string    `json:"id" db:"id"`
	StudentERP    string    `json:"student_erp" db:"student_erp"`
	PenaltyTypeID string    `json:"penalty_type_id" db:"penalty_type_id"`
	Reason        string    `json:"reason" db:"reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
