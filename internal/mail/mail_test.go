package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/config"
)

func TestSendGridMailer_Send(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := NewSendGridMailer("sg-key", srv.URL, "Course Portal", "noreply@iba.edu.pk", "Portal", zerolog.Nop())
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "a.khan@khi.iba.edu.pk", Subject: "Your code", Text: "123456"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", auth)
	personalizations := got["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	p := personalizations[0].(map[string]any)
	assert.Equal(t, "[Portal] Your code", p["subject"])
	to := p["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "a.khan@khi.iba.edu.pk", to["email"])
	content := got["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "123456", content["value"])
}

func TestSendGridMailer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	m, err := NewSendGridMailer("sg-key", srv.URL, "", "noreply@iba.edu.pk", "", zerolog.New(&buf))
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: "a@iba.edu.pk", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, buf.String(), "bad key")
}

func TestNewSendGridMailer_RequiresKey(t *testing.T) {
	_, err := NewSendGridMailer("", "", "", "noreply@iba.edu.pk", "", zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLogMailer(zerolog.New(&buf)).Send(context.Background(), Message{To: "a@iba.edu.pk", Subject: "Code", Text: "654321"}))
	assert.Contains(t, buf.String(), "654321")
}

func TestNew(t *testing.T) {
	m, err := New(config.MailConfig{Provider: "log"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = New(config.MailConfig{Provider: "sendgrid", SendGridAPIKey: "k", FromAddress: "noreply@iba.edu.pk"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SendGridMailer{}, m)

	_, err = New(config.MailConfig{Provider: "smtp"}, zerolog.Nop())
	assert.Error(t, err)
}
