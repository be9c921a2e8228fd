package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardClient_PublicBoard(t *testing.T) {
	for name, body := range map[string]string{
		"bare":      `{"sessions":[{"id":"s1","session_number":1}],"students":[{"erp":"10001","student_name":"Ayesha"}]}`,
		"enveloped": `{"success":true,"data":{"sessions":[{"id":"s1","session_number":1}],"students":[{"erp":"10001","student_name":"Ayesha"}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/rest/v1/rpc/get_public_attendance_board", r.URL.Path)
				assert.Equal(t, "anon", r.Header.Get("apikey"))
				assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			board, err := NewBoardClient(srv.URL, "anon", time.Second, zerolog.Nop()).PublicBoard(context.Background())
			require.NoError(t, err)
			require.Len(t, board.Sessions, 1)
			require.Len(t, board.Students, 1)
			assert.Equal(t, "Ayesha", board.Students[0].StudentName)
		})
	}
}

func TestSheetsClient_Push(t *testing.T) {
	var got SheetPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := &SheetPayload{
		Type:        "attendance_snapshot",
		TargetSheet: "Attendance",
		Headers:     []string{"ERP"},
		Rows:        [][]string{{"10001"}},
		Metadata:    SheetMetadata{Students: 1, Sessions: 0, Source: "portal"},
	}
	require.NoError(t, NewSheetsClient(srv.URL, time.Second, zerolog.Nop()).Push(context.Background(), payload))
	assert.Equal(t, "Attendance", got.TargetSheet)
	assert.Equal(t, [][]string{{"10001"}}, got.Rows)
}

func TestSheetsClient_PushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "script disabled", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSheetsClient(srv.URL, time.Second, zerolog.Nop()).Push(context.Background(), &SheetPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "script disabled")
}
