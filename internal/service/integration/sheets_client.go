package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/models"
)

const publicBoardRPC = "/rest/v1/rpc/get_public_attendance_board"

// SheetPayload is the snapshot posted to the spreadsheet webhook.
type SheetPayload struct {
	Type        string        `json:"type"`
	TargetSheet string        `json:"target_sheet"`
	GeneratedAt time.Time     `json:"generated_at"`
	Headers     []string      `json:"headers"`
	Rows        [][]string    `json:"rows"`
	Metadata    SheetMetadata `json:"metadata"`
}

type SheetMetadata struct {
	Students int    `json:"students"`
	Sessions int    `json:"sessions"`
	Source   string `json:"source"`
}

// BoardClient reads the public attendance board over HTTP.
type BoardClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewBoardClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *BoardClient {
	return &BoardClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *BoardClient) PublicBoard(ctx context.Context) (*models.AttendanceBoard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+publicBoardRPC, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance board: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("attendance board request returned status %d: %s", resp.StatusCode, errorMessage(body))
	}

	var envelope struct {
		models.AttendanceBoard
		Data *models.AttendanceBoard `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode attendance board: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return &envelope.AttendanceBoard, nil
}

// SheetsClient posts payloads to a spreadsheet webhook.
type SheetsClient struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

func NewSheetsClient(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SheetsClient {
	return &SheetsClient{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *SheetsClient) Push(ctx context.Context, payload *SheetPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to sheet webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return fmt.Errorf("sheet webhook returned status %d: %s", resp.StatusCode, errorMessage(text))
	}

	c.logger.Info().
		Str("target_sheet", payload.TargetSheet).
		Int("rows", len(payload.Rows)).
		Msg("Sheet updated")
	return nil
}
