package models

import "time"

// Data Transfer Objects

type CreateAssignmentRequest struct {
	Title string     `json:"title" validate:"required,notblank,max=255"`
	DueAt *time.Time `json:"due_at" validate:"required"`
}

type SubmitClaimRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
	Days         int    `json:"days" validate:"required,gt=0"`
}

type GrantAdjustmentRequest struct {
	StudentERP string `json:"student_erp" validate:"required,max=32"`
	DaysDelta  int    `json:"days_delta" validate:"required,ne=0"`
	Reason     string `json:"reason" validate:"max=500"`
}

type CreateSessionRequest struct {
	SessionNumber int       `json:"session_number" validate:"required,gt=0"`
	SessionDate   time.Time `json:"session_date" validate:"required"`
	Title         string    `json:"title" validate:"max=255"`
}

type BulkMarkRequest struct {
	AbsentList string `json:"absent_list"`
	Confirm    bool   `json:"confirm"`
}

type RosterEntryRequest struct {
	ERP         string `json:"erp" validate:"required,max=32"`
	StudentName string `json:"student_name" validate:"required,max=255"`
	ClassNo     string `json:"class_no" validate:"max=16"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type ReplaceRosterRequest struct {
	Students []RosterEntryRequest `json:"students" validate:"required,min=1,dive"`
	Confirm  bool                 `json:"confirm"`
}

type CreateTicketRequest struct {
	Category    string `json:"category" validate:"required,oneof=attendance late_days grading technical other"`
	Subject     string `json:"subject" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=5000"`
}

type UpdateTicketRequest struct {
	Status     string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	TAResponse string `json:"ta_response" validate:"max=5000"`
}

// StudentCodeRequest asks for a one-time sign-in code. The code is mailed
// to the roster email of the ERP.
type StudentCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	ERP   string `json:"erp" validate:"required,max=32"`
}

type StudentSignInRequest struct {
	Email string `json:"email" validate:"required,email"`
	ERP   string `json:"erp" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type TASignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type SetSettingRequest struct {
	Value string `json:"value" validate:"max=2000"`
}

type CreateSubmissionRequest struct {
	Title string     `json:"title" validate:"required,max=255"`
	URL   string     `json:"url" validate:"required,url"`
	DueAt *time.Time `json:"due_at"`
}

type CreateRuleExceptionRequest struct {
	StudentERP    string `json:"student_erp" validate:"required,max=32"`
	PenaltyTypeID string `json:"penalty_type_id" validate:"required,uuid"`
	Reason        string `json:"reason" validate:"max=500"`
}

type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

type CycleStatusRequest struct {
	StudentERP string `json:"student_erp" validate:"required,max=32"`
}

type NamingPenaltyRequest struct {
	StudentERP    string `json:"student_erp" validate:"required,max=32"`
	NamingPenalty bool   `json:"naming_penalty"`
}

type AllowTARequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}
