package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/attendance"
	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/storage"
)

// Export is a rendered attendance CSV.
type Export struct {
	Filename   string
	Content    []byte
	ArchiveKey string
}

type BoardService interface {
	// PublicBoard returns the normalized attendance board.
	PublicBoard(ctx context.Context) (*models.AttendanceBoard, error)
	ExportCSV(ctx context.Context, id auth.Identity, withPenalties bool) (*Export, error)
}

type boardService struct {
	attendance repository.AttendanceRepository
	archive    storage.Archive
	logger     zerolog.Logger
	now        func() time.Time
}

// NewBoardService builds the board service. archive may be nil when object
// storage is disabled.
func NewBoardService(attendanceRepo repository.AttendanceRepository, archive storage.Archive, logger zerolog.Logger) BoardService {
	return &boardService{
		attendance: attendanceRepo,
		archive:    archive,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *boardService) PublicBoard(ctx context.Context) (*models.AttendanceBoard, error) {
	raw, err := s.attendance.GetPublicBoard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance board: %w", err)
	}
	board := attendance.NormalizeBoard(*raw)
	return &board, nil
}

func (s *boardService) ExportCSV(ctx context.Context, id auth.Identity, withPenalties bool) (*Export, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	board, err := s.PublicBoard(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, *board, withPenalties); err != nil {
		return nil, fmt.Errorf("failed to render csv: %w", err)
	}

	now := s.now()
	export := &Export{
		Filename: fmt.Sprintf("attendance-%s.csv", now.UTC().Format("2006-01-02")),
		Content:  buf.Bytes(),
	}

	if s.archive != nil {
		key := storage.Key("exports", export.Filename, now)
		if err := s.archive.Put(ctx, key, "text/csv", bytes.NewReader(export.Content), int64(len(export.Content))); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to archive attendance export")
		} else {
			export.ArchiveKey = key
		}
	}

	s.logger.Info().
		Int("students", len(board.Students)).
		Int("sessions", len(board.Sessions)).
		Str("exported_by", id.Email).
		Msg("Attendance exported")
	return export, nil
}
