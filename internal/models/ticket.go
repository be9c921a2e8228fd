package models

import (
	"time"
)

type Ticket struct {
	ID           string    `json:"id" db:"id"`
	Reference    string    `json:"reference" db:"reference"`
	StudentERP   string    `json:"student_erp" db:"student_erp"`
	StudentEmail string    `json:"student_email" db:"student_email"`
	Category     string    `json:"category" db:"category"`
	Subject      string    `json:"subject" db:"subject"`
	Description  string    `json:"description" db:"description"`
	Status       string    `json:"status" db:"status"` // open, in_progress, resolved, closed
	TAResponse   string    `json:"ta_response" db:"ta_response"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

func (ts TicketStatus) String() string {
	return string(ts)
}

func IsValidTicketStatus(status string) bool {
	switch TicketStatus(status) {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	default:
		return false
	}
}
