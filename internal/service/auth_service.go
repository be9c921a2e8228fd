package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/mail"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Identity  auth.Identity `json:"identity"`
}

// CodeIssued reports where a sign-in code was sent. The address is masked.
type CodeIssued struct {
	SentTo    string    `json:"sent_to"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthService interface {
	// RequestStudentCode mails a one-time code to the roster email of the
	// student. StudentSignIn exchanges that code for a session.
	RequestStudentCode(ctx context.Context, req *models.StudentCodeRequest) (*CodeIssued, error)
	StudentSignIn(ctx context.Context, req *models.StudentSignInRequest) (*Session, error)
	TASignIn(ctx context.Context, req *models.TASignInRequest) (*Session, error)
	// Authenticate resolves a bearer token to the identity it was issued for.
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	SignOut(ctx context.Context, id auth.Identity) error

	CheckTAAllowlist(ctx context.Context, email string) (bool, error)
	GetMyPassword(ctx context.Context, id auth.Identity) (string, error)
	SetMyPassword(ctx context.Context, id auth.Identity, req *models.SetPasswordRequest) error

	ListTAs(ctx context.Context, id auth.Identity) ([]models.TAAccount, error)
	AllowTA(ctx context.Context, email string) error
	RemoveTA(ctx context.Context, id auth.Identity, email string) error
	SetTAPassword(ctx context.Context, email, password string) error
}

type authService struct {
	roster    repository.RosterRepository
	tas       repository.TARepository
	tokens    *auth.Tokens
	cipher    *auth.PasswordCipher
	codes     *auth.Codes
	mailer    mail.Mailer
	domains   []string
	validator *validation.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	roster repository.RosterRepository,
	tas repository.TARepository,
	tokens *auth.Tokens,
	cipher *auth.PasswordCipher,
	codes *auth.Codes,
	mailer mail.Mailer,
	studentDomains []string,
	validator *validation.Validator,
	logger zerolog.Logger,
) AuthService {
	domains := make([]string, 0, len(studentDomains))
	for _, d := range studentDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &authService{
		roster:    roster,
		tas:       tas,
		tokens:    tokens,
		cipher:    cipher,
		codes:     codes,
		mailer:    mailer,
		domains:   domains,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) institutionEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range s.domains {
		if domain == d {
			return true
		}
	}
	return false
}

func (s *authService) issue(id auth.Identity) (*Session, error) {
	token, expires, err := s.tokens.Generate(id)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, Identity: id}, nil
}

// rosterStudent resolves the roster row a student sign-in refers to. The
// email must be an institution address equal to the roster email.
func (s *authService) rosterStudent(ctx context.Context, rawEmail, rawERP string) (*models.Student, error) {
	email := normalizeEmail(rawEmail)
	if !s.institutionEmail(email) {
		return nil, ErrNotInstitutionEmail
	}

	student, err := s.roster.GetByERP(ctx, strings.TrimSpace(rawERP))
	if err != nil {
		return nil, fmt.Errorf("failed to check roster: %w", err)
	}
	if student == nil {
		return nil, ErrNotOnRoster
	}
	if strings.TrimSpace(student.Email) == "" {
		return nil, ErrRosterEmailMissing
	}
	if normalizeEmail(student.Email) != email {
		return nil, ErrNotOnRoster
	}
	return student, nil
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "***" + email[at:]
	}
	return local[:2] + "***" + email[at:]
}

func (s *authService) RequestStudentCode(ctx context.Context, req *models.StudentCodeRequest) (*CodeIssued, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	student, err := s.rosterStudent(ctx, req.Email, req.ERP)
	if err != nil {
		return nil, err
	}

	code, expires, err := s.codes.Issue(student.ERP)
	if err != nil {
		return nil, err
	}
	to := normalizeEmail(student.Email)
	minutes := int(s.codes.TTL().Minutes())
	err = s.mailer.Send(ctx, mail.Message{
		To:      to,
		Subject: "Your sign-in code",
		Text:    fmt.Sprintf("Your course portal sign-in code is %s. It expires in %d minutes.", code, minutes),
	})
	if err != nil {
		s.codes.Discard(student.ERP)
		return nil, fmt.Errorf("failed to deliver sign-in code: %w", err)
	}

	s.logger.Info().Str("student_erp", student.ERP).Msg("Sign-in code sent")
	return &CodeIssued{SentTo: maskEmail(to), ExpiresAt: expires}, nil
}

// StudentSignIn issues a student session once the mailed code checks out.
func (s *authService) StudentSignIn(ctx context.Context, req *models.StudentSignInRequest) (*Session, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	student, err := s.rosterStudent(ctx, req.Email, req.ERP)
	if err != nil {
		return nil, err
	}
	if err := s.codes.Verify(student.ERP, req.Code); err != nil {
		s.logger.Warn().Str("student_erp", student.ERP).Err(err).Msg("Student sign-in rejected")
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	s.logger.Info().Str("student_erp", student.ERP).Msg("Student signed in")
	return s.issue(auth.Identity{
		Email: normalizeEmail(student.Email),
		Role:  auth.RoleStudent,
		ERP:   student.ERP,
		Name:  student.StudentName,
	})
}

func (s *authService) TASignIn(ctx context.Context, req *models.TASignInRequest) (*Session, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	account, err := s.tas.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check allowlist: %w", err)
	}
	if account == nil {
		return nil, ErrNotAllowlisted
	}
	if account.PasswordCipher == "" {
		return nil, ErrPasswordNotSet
	}
	if !s.cipher.Matches(account.PasswordCipher, req.Password) {
		s.logger.Warn().Str("email", email).Msg("TA sign-in rejected")
		return nil, ErrInvalidCredentials
	}

	s.logger.Info().Str("email", email).Msg("TA signed in")
	return s.issue(auth.Identity{Email: email, Role: auth.RoleTA})
}

func (s *authService) Authenticate(ctx context.Context, token string) (auth.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.Identity{}, err
	}
	id := claims.Identity()

	// Allowlist removal takes effect before the token expires.
	if id.IsTA() {
		ok, err := s.tas.IsAllowlisted(ctx, id.Email)
		if err != nil {
			return auth.Identity{}, fmt.Errorf("failed to check allowlist: %w", err)
		}
		if !ok {
			return auth.Identity{}, ErrNotAllowlisted
		}
	}
	return id, nil
}

func (s *authService) SignOut(_ context.Context, id auth.Identity) error {
	if id.TokenID == "" {
		return auth.ErrInvalidToken
	}
	s.tokens.Revoke(id.TokenID, s.now().Add(s.tokens.TTL()))
	return nil
}

func (s *authService) CheckTAAllowlist(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, nil
	}
	return s.tas.IsAllowlisted(ctx, email)
}

func (s *authService) GetMyPassword(ctx context.Context, id auth.Identity) (string, error) {
	if err := requireTA(id); err != nil {
		return "", err
	}
	account, err := s.tas.Get(ctx, id.Email)
	if err != nil {
		return "", fmt.Errorf("failed to get TA: %w", err)
	}
	if account == nil {
		return "", ErrTANotFound
	}
	if account.PasswordCipher == "" {
		return "", ErrPasswordNotSet
	}
	password, err := s.cipher.Decrypt(account.PasswordCipher)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password: %w", err)
	}
	return password, nil
}

func (s *authService) SetMyPassword(ctx context.Context, id auth.Identity, req *models.SetPasswordRequest) error {
	if err := requireTA(id); err != nil {
		return err
	}
	if err := validate(s.validator, req); err != nil {
		return err
	}
	return s.SetTAPassword(ctx, id.Email, req.NewPassword)
}

func (s *authService) ListTAs(ctx context.Context, id auth.Identity) ([]models.TAAccount, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.tas.List(ctx)
}

// AllowTA adds an email to the allowlist. It is idempotent.
func (s *authService) AllowTA(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return NewValidationError(errInvalidRequest, validation.FieldError{Field: "email", Error: "email must be a valid email address"})
	}
	if err := s.tas.Add(ctx, email, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to allowlist TA: %w", err)
	}
	s.logger.Info().Str("email", email).Msg("TA allowlisted")
	return nil
}

func (s *authService) RemoveTA(ctx context.Context, id auth.Identity, email string) error {
	if err := requireTA(id); err != nil {
		return err
	}
	email = normalizeEmail(email)
	if email == id.Email {
		return NewValidationError(errors.New("you cannot remove yourself from the allowlist"))
	}
	removed, err := s.tas.Remove(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to remove TA: %w", err)
	}
	if !removed {
		return ErrTANotFound
	}
	s.logger.Info().Str("email", email).Str("removed_by", id.Email).Msg("TA removed from allowlist")
	return nil
}

func (s *authService) SetTAPassword(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if len(password) < 8 {
		return NewValidationError(errInvalidRequest, validation.FieldError{
			Field: "new_password",
			Error: "new_password must be at least 8 characters in length",
		})
	}
	encrypted, err := s.cipher.Encrypt(password)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}
	updated, err := s.tas.SetPasswordCipher(ctx, email, encrypted)
	if err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	if !updated {
		return ErrTANotFound
	}
	s.logger.Info().Str("email", email).Msg("TA password updated")
	return nil
}
