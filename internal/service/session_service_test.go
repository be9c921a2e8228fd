package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/validation"
)

func TestSessionLifecycle(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]models.Session{}}
	att := newFakeAttendance()
	pub := &recordingPublisher{}
	svc := NewSessionService(sessions, att, validation.New(), pub, zerolog.Nop())
	ctx := context.Background()

	s, err := svc.Create(ctx, ta, &models.CreateSessionRequest{SessionNumber: 4, SessionDate: at("2026-01-20T00:00:00Z"), Title: "Graphs"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, ta, &models.CreateSessionRequest{SessionNumber: 4, SessionDate: at("2026-01-21T00:00:00Z")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "session_number", verr.Fields[0].Field)

	att.rows[s.ID] = []models.Attendance{{StudentERP: "A"}, {StudentERP: "B"}}
	err = svc.Delete(ctx, ta, s.ID, false)
	var confirm *ConfirmationRequiredError
	require.ErrorAs(t, err, &confirm)
	assert.Contains(t, confirm.Prompt, "S04 and its 2 attendance row(s)")
	assert.Contains(t, sessions.sessions, s.ID)

	require.NoError(t, svc.Delete(ctx, ta, s.ID, true))
	assert.NotContains(t, sessions.sessions, s.ID)
	assert.ErrorIs(t, svc.Delete(ctx, ta, s.ID, true), ErrSessionNotFound)
	assert.Equal(t, []string{"sessions:INSERT", "sessions:DELETE"}, pub.tables())
}
