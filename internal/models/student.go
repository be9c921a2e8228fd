package models

import (
	"time"
)

// Student is a roster row keyed by ERP.
type Student struct {
	ERP         string    `json:"erp" db:"erp"`
	StudentName string    `json:"student_name" db:"student_name"`
	ClassNo     string    `json:"class_no" db:"class_no"`
	Email       string    `json:"email,omitempty" db:"email"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RosterCheck struct {
	Found       bool   `json:"found"`
	StudentName string `json:"student_name,omitempty"`
	ClassNo     string `json:"class_no,omitempty"`
}

type TAAccount struct {
	Email          string    `json:"email" db:"email"`
	PasswordCipher string    `json:"-" db:"password_cipher"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
