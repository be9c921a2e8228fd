package service

import (
	"errors"

	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

var (
	ErrForbidden           = errors.New("you do not have access to this action")
	ErrNotAllowlisted      = errors.New("this email is not on the TA allowlist")
	ErrNotInstitutionEmail = errors.New("sign in with your institution email")
	ErrNotOnRoster         = errors.New("no roster entry matches this email and ERP")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidCode         = errors.New("invalid or expired sign-in code")
	ErrRosterEmailMissing  = errors.New("no email is on file for this ERP, ask a TA to update the roster")
	ErrPasswordNotSet      = errors.New("no password has been set for this account")
	ErrFeatureDisabled     = errors.New("this feature is currently disabled")

	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrClaimNotFound      = errors.New("claim not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSettingNotFound    = errors.New("setting not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrPenaltyNotFound    = errors.New("penalty type not found")
	ErrExceptionNotFound  = errors.New("rule exception not found")
	ErrTANotFound         = errors.New("TA not found")

	ErrAlreadyArchived = errors.New("assignment is already archived")
	ErrDuplicate       = errors.New("record already exists")
)

// ValidationError is a rejected input. Fields is empty for domain checks
// that are not tied to a request field.
type ValidationError struct {
	Err    error
	Fields []validation.FieldError
}

func NewValidationError(err error, fields ...validation.FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RemoteError carries a rejection from a data-store procedure. Message is
// shown to the user verbatim.
type RemoteError struct {
	Procedure string
	Message   string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ConfirmationRequiredError is returned by destructive operations called
// without confirmation. Nothing has been written.
type ConfirmationRequiredError struct {
	Prompt string
}

func (e *ConfirmationRequiredError) Error() string {
	return e.Prompt
}

// remoteError converts procedure rejections and unique violations into the
// service error types and leaves other errors untouched.
func remoteError(err error) error {
	var procErr *repository.ProcedureError
	if errors.As(err, &procErr) {
		return &RemoteError{Procedure: procErr.Procedure, Message: procErr.Message}
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}
