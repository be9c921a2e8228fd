package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/joho/godotenv"

	"github.com/courseportal/portal/internal/attendance"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/service/integration"
	"github.com/courseportal/portal/pkg/logger"
)

const (
	payloadType   = "attendance_snapshot"
	payloadSource = "course-portal"
)

type boardSource interface {
	PublicBoard(ctx context.Context) (*models.AttendanceBoard, error)
}

type sheetSink interface {
	Push(ctx context.Context, payload *integration.SheetPayload) error
}

type syncer struct {
	board         boardSource
	sheets        sheetSink
	targetSheet   string
	withPenalties bool
	now           func() time.Time
}

// env reads a setting, falling back to the VITE_ prefixed name used by the
// frontend build.
func env(getenv func(string) string, key string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return getenv("VITE_" + key)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("sheetsync", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dryRun := flags.Bool("dry-run", false, "print the payload instead of posting it")
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	sheet := flags.String("sheet", "Attendance", "target sheet name")
	penalties := flags.Bool("penalties", true, "include the naming penalties column")
	timeout := flags.Duration("timeout", 30*time.Second, "HTTP timeout")
	logLevel := flags.String("log-level", "info", "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return err
	}

	log := logger.NewStderr(*logLevel)

	boardURL := env(getenv, "SUPABASE_URL")
	apiKey := env(getenv, "SUPABASE_ANON_KEY")
	webhookURL := env(getenv, "GOOGLE_SCRIPT_URL")
	if boardURL == "" {
		return errors.New("SUPABASE_URL is not set")
	}
	if webhookURL == "" && !*dryRun {
		return errors.New("GOOGLE_SCRIPT_URL is not set")
	}

	s := &syncer{
		board:         integration.NewBoardClient(boardURL, apiKey, *timeout, log),
		sheets:        integration.NewSheetsClient(webhookURL, *timeout, log),
		targetSheet:   *sheet,
		withPenalties: *penalties,
		now:           time.Now,
	}

	payload, err := s.payload(ctx)
	if err != nil {
		return err
	}

	if *dryRun {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if err := s.sheets.Push(ctx, payload); err != nil {
		return err
	}
	log.Info().
		Int("students", payload.Metadata.Students).
		Int("sessions", payload.Metadata.Sessions).
		Msg("Attendance synced")
	return nil
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (s *syncer) payload(ctx context.Context) (*integration.SheetPayload, error) {
	raw, err := s.board.PublicBoard(ctx)
	if err != nil {
		return nil, err
	}

	board := attendance.NormalizeBoard(*raw)
	headers, rows := attendance.Table(board, s.withPenalties)

	return &integration.SheetPayload{
		Type:        payloadType,
		TargetSheet: s.targetSheet,
		GeneratedAt: s.now().UTC(),
		Headers:     headers,
		Rows:        rows,
		Metadata: integration.SheetMetadata{
			Students: len(board.Students),
			Sessions: len(board.Sessions),
			Source:   payloadSource,
		},
	}, nil
}
