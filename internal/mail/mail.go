// Package mail delivers transactional email such as student sign-in codes.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/courseportal/portal/internal/config"
)

const (
	defaultHost = "https://api.sendgrid.com"
	sendPath    = "/v3/mail/send"
)

var ErrNotConfigured = errors.New("mail delivery is not configured")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the mailer selected by cfg.Provider.
func New(cfg config.MailConfig, logger zerolog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridHost, cfg.FromName, cfg.FromAddress, cfg.AppName, logger)
	case "log", "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
	}
}

// SendGridMailer posts messages to the SendGrid v3 API.
type SendGridMailer struct {
	apiKey     string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     zerolog.Logger
}

func NewSendGridMailer(apiKey, host, fromName, fromAddress, appName string, logger zerolog.Logger) (*SendGridMailer, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(fromAddress) == "" {
		return nil, ErrNotConfigured
	}
	if host == "" {
		host = defaultHost
	}
	prefix := ""
	if appName != "" {
		prefix = "[" + appName + "] "
	}
	return &SendGridMailer{
		apiKey:     apiKey,
		host:       strings.TrimRight(host, "/"),
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: prefix,
		logger:     logger,
	}, nil
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	out := sgmail.NewV3Mail()
	out.SetFrom(m.from)
	out.AddPersonalizations(p)
	out.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		out.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return out
}

// Send delivers msg synchronously. Context cancellation is checked before
// the request is made.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(m.apiKey, sendPath, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		m.logger.Error().
			Int("status", res.StatusCode).
			Str("body", res.Body).
			Msg("SendGrid rejected message")
		return fmt.Errorf("failed to send email: sendgrid status %d", res.StatusCode)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is meant
// for local development only.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Warn().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("text", msg.Text).
		Msg("Email not sent, log mailer in use")
	return nil
}
