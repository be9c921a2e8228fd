package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/service/integration"
)

func boardServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	board := models.AttendanceBoard{
		Sessions: []models.BoardSession{
			{ID: "s2", SessionNumber: 2},
			{ID: "s1", SessionNumber: 1},
		},
		Students: []models.BoardStudent{
			{ERP: "10001", StudentName: "Ayesha", ClassNo: "1", Records: map[string]models.AttendanceStatus{"s1": models.StatusPresent, "s2": models.StatusAbsent}, TotalAbsences: 1},
		},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/get_public_attendance_board", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"permission denied"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": board})
	}))
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestRun_DryRunPrintsPayload(t *testing.T) {
	board := boardServer(t, http.StatusOK)
	defer board.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--dry-run", "--env-file", ""}, envMap(map[string]string{
		"VITE_SUPABASE_URL":      board.URL,
		"VITE_SUPABASE_ANON_KEY": "anon-key",
	}), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var payload integration.SheetPayload
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &payload))
	assert.Equal(t, payloadType, payload.Type)
	assert.Equal(t, "Attendance", payload.TargetSheet)
	assert.Equal(t, []string{"Class No", "Student Name", "ERP", "Naming Penalties", "S01", "S02", "Total Absences"}, payload.Headers)
	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "10001", payload.Rows[0][2])
	assert.Equal(t, integration.SheetMetadata{Students: 1, Sessions: 2, Source: payloadSource}, payload.Metadata)
}

func TestRun_PostsToWebhook(t *testing.T) {
	board := boardServer(t, http.StatusOK)
	defer board.Close()

	var got integration.SheetPayload
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer webhook.Close()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--env-file", "", "--sheet", "Week 3", "--penalties=false"}, envMap(map[string]string{
		"SUPABASE_URL":      board.URL,
		"SUPABASE_ANON_KEY": "anon-key",
		"GOOGLE_SCRIPT_URL": webhook.URL,
	}), &stdout, &stderr)
	require.NoError(t, err)

	assert.Empty(t, stdout.String())
	assert.Equal(t, "Week 3", got.TargetSheet)
	assert.NotContains(t, got.Headers, "Naming Penalties")
}

func TestRun_Failures(t *testing.T) {
	failing := boardServer(t, http.StatusUnauthorized)
	defer failing.Close()

	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{name: "missing board url", env: map[string]string{}, args: []string{"--env-file", ""}, wantErr: "SUPABASE_URL is not set"},
		{name: "missing webhook", env: map[string]string{"SUPABASE_URL": failing.URL}, args: []string{"--env-file", ""}, wantErr: "GOOGLE_SCRIPT_URL is not set"},
		{name: "board rejects", env: map[string]string{"SUPABASE_URL": failing.URL, "SUPABASE_ANON_KEY": "anon-key"}, args: []string{"--env-file", "", "--dry-run"}, wantErr: "status 401"},
		{name: "bad flag", env: map[string]string{}, args: []string{"--nope"}, wantErr: "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, envMap(tt.env), &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHEETSYNC_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("SHEETSYNC_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("SHEETSYNC_TEST_VALUE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SHEETSYNC_TEST_VALUE"))
}

func TestSyncerPayloadUsesClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("PKT", 5*3600))
	s := &syncer{
		board:       stubBoard{},
		targetSheet: "Attendance",
		now:         func() time.Time { return at },
	}

	p, err := s.payload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, at.UTC(), p.GeneratedAt)
	assert.Empty(t, p.Rows)
}

type stubBoard struct{}

func (stubBoard) PublicBoard(context.Context) (*models.AttendanceBoard, error) {
	return &models.AttendanceBoard{}, nil
}
