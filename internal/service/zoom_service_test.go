package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/service/integration"
)

type stubZoom struct {
	threshold int
	err       error
}

func (s *stubZoom) Process(_ context.Context, _ []byte, _ string, threshold int) (*integration.ProcessResult, error) {
	s.threshold = threshold
	if s.err != nil {
		return nil, s.err
	}
	return &integration.ProcessResult{AttendanceRows: []map[string]any{{"erp": "10001"}}}, nil
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (m *memArchive) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	if m.err != nil {
		return m.err
	}
	b, _ := io.ReadAll(body)
	m.objects[key] = b
	return nil
}

func TestZoomProcess(t *testing.T) {
	client := &stubZoom{}
	archive := &memArchive{objects: map[string][]byte{}}
	settings := &fakeSettings{values: map[string]string{SettingZoomThreshold: "65"}}
	svc := NewZoomService(client, settings, archive, 70, nil, zerolog.Nop())
	ctx := context.Background()

	res, err := svc.Process(ctx, ta, "log.csv", []byte("name,duration"), nil)
	require.NoError(t, err)
	assert.Len(t, res.AttendanceRows, 1)
	assert.Equal(t, 65, client.threshold)
	assert.Len(t, archive.objects, 1)

	explicit := 80
	_, err = svc.Process(ctx, ta, "log.csv", []byte("x"), &explicit)
	require.NoError(t, err)
	assert.Equal(t, 80, client.threshold)

	settings.values = nil
	_, err = svc.Process(ctx, ta, "log.csv", []byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 70, client.threshold)
}

func TestZoomProcess_Errors(t *testing.T) {
	client := &stubZoom{}
	archive := &memArchive{objects: map[string][]byte{}, err: errors.New("minio down")}
	svc := NewZoomService(client, &fakeSettings{}, archive, 70, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Process(ctx, student, "log.csv", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrForbidden)

	var verr *ValidationError
	_, err = svc.Process(ctx, ta, "log.csv", nil, nil)
	assert.ErrorAs(t, err, &verr)

	bad := 101
	_, err = svc.Process(ctx, ta, "log.csv", []byte("x"), &bad)
	assert.ErrorAs(t, err, &verr)

	client.err = &integration.ProcessorError{StatusCode: 422, Message: "CSV has no Duration column"}
	_, err = svc.Process(ctx, ta, "log.csv", []byte("x"), nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote, "archive failures do not block processing")
	assert.Equal(t, "CSV has no Duration column", remote.Message)
}

func TestExportCSV_Archives(t *testing.T) {
	att := newFakeAttendance()
	att.board = &models.AttendanceBoard{
		Sessions: []models.BoardSession{{ID: "s2", SessionNumber: 2}, {ID: "s1", SessionNumber: 1}},
		Students: []models.BoardStudent{
			{ERP: "10001", StudentName: "Ayesha", ClassNo: "1", Records: map[string]models.AttendanceStatus{"s1": models.StatusAbsent}, TotalAbsences: 1},
			{ERP: "", StudentName: "Ghost"},
		},
	}
	archive := &memArchive{objects: map[string][]byte{}}
	svc := NewBoardService(att, archive, zerolog.Nop()).(*boardService)
	svc.now = func() time.Time { return at("2026-01-09T09:00:00Z") }

	board, err := svc.PublicBoard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, board.Sessions[0].SessionNumber)
	assert.Len(t, board.Students, 1)

	export, err := svc.ExportCSV(context.Background(), ta, false)
	require.NoError(t, err)
	assert.Equal(t, "attendance-2026-01-09.csv", export.Filename)
	assert.True(t, bytes.HasPrefix(export.Content, []byte("Class No,Student Name,ERP,S01,S02,Total Absences\n")))
	assert.Equal(t, export.Content, archive.objects[export.ArchiveKey])

	_, err = svc.ExportCSV(context.Background(), student, false)
	assert.ErrorIs(t, err, ErrForbidden)
}
