package models

import (
	"time"
)

type Session struct {
	ID            string    `json:"id" db:"id"`
	SessionNumber int       `json:"session_number" db:"session_number"`
	SessionDate   time.Time `json:"session_date" db:"session_date"`
	Title         string    `json:"title" db:"title"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type AttendanceStatus string

const (
	StatusPresent  AttendanceStatus = "present"
	StatusAbsent   AttendanceStatus = "absent"
	StatusExcused  AttendanceStatus = "excused"
	StatusUnmarked AttendanceStatus = ""
)

func (s AttendanceStatus) String() string {
	return string(s)
}

func IsValidAttendanceStatus(status string) bool {
	switch AttendanceStatus(status) {
	case StatusPresent, StatusAbsent, StatusExcused:
		return true
	default:
		return false
	}
}

type Attendance struct {
	ID            string           `json:"id" db:"id"`
	SessionID     string           `json:"session_id" db:"session_id"`
	StudentERP    string           `json:"student_erp" db:"student_erp"`
	Status        AttendanceStatus `json:"status" db:"status"`
	NamingPenalty bool             `json:"naming_penalty" db:"naming_penalty"`
	MarkedBy      string           `json:"marked_by,omitempty" db:"marked_by"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// StudentAttendanceRecord is one row of a student's own attendance history.
type StudentAttendanceRecord struct {
	SessionID     string           `json:"session_id"`
	SessionNumber int              `json:"session_number"`
	SessionDate   time.Time        `json:"session_date"`
	Title         string           `json:"title"`
	Status        AttendanceStatus `json:"status"`
	NamingPenalty bool             `json:"naming_penalty"`
}

type StudentAttendance struct {
	Records       []StudentAttendanceRecord `json:"records"`
	TotalAbsences int                       `json:"total_absences"`
}

// BoardSession and BoardStudent form the public attendance board payload.
type BoardSession struct {
	ID            string    `json:"id"`
	SessionNumber int       `json:"session_number"`
	SessionDate   time.Time `json:"session_date"`
	Title         string    `json:"title,omitempty"`
}

// Penalties lists the sessions where a naming penalty was recorded.
type BoardStudent struct {
	ERP             string                      `json:"erp"`
	StudentName     string                      `json:"student_name"`
	ClassNo         string                      `json:"class_no"`
	Records         map[string]AttendanceStatus `json:"records"`
	Penalties       map[string]bool             `json:"penalties,omitempty"`
	NamingPenalties int                         `json:"naming_penalties"`
	TotalAbsences   int                         `json:"total_absences"`
}

type AttendanceBoard struct {
	Sessions []BoardSession `json:"sessions"`
	Students []BoardStudent `json:"students"`
}
