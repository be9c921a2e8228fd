package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZoomClient uploads Zoom participant logs to the external processor.
type ZoomClient interface {
	Process(ctx context.Context, fileContent []byte, fileName string, threshold int) (*ProcessResult, error)
}

// ProcessorError is a non-2xx answer from the processor. Message is the
// processor's own explanation when it sent one.
type ProcessorError struct {
	StatusCode int
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("zoom processor returned status %d: %s", e.StatusCode, e.Message)
}

// ProcessResult holds the row arrays returned by the processor. Any numeric
// top-level field lands in Summary.
type ProcessResult struct {
	AttendanceRows []map[string]any   `json:"attendance_rows"`
	IssuesRows     []map[string]any   `json:"issues_rows"`
	AbsentRows     []map[string]any   `json:"absent_rows"`
	PenaltiesRows  []map[string]any   `json:"penalties_rows"`
	MatchesRows    []map[string]any   `json:"matches_rows"`
	Summary        map[string]float64 `json:"summary"`
}

func (r *ProcessResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	rows := map[string]*[]map[string]any{
		"attendance_rows": &r.AttendanceRows,
		"issues_rows":     &r.IssuesRows,
		"absent_rows":     &r.AbsentRows,
		"penalties_rows":  &r.PenaltiesRows,
		"matches_rows":    &r.MatchesRows,
	}
	r.Summary = make(map[string]float64)
	for name, raw := range fields {
		if dst, ok := rows[name]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			r.Summary[name] = n
		}
	}
	for _, dst := range rows {
		if *dst == nil {
			*dst = []map[string]any{}
		}
	}
	return nil
}

type zoomClient struct {
	baseURL         string
	processEndpoint string
	client          *http.Client
	logger          zerolog.Logger
}

func NewZoomClient(baseURL, processEndpoint string, timeout time.Duration, logger zerolog.Logger) ZoomClient {
	return &zoomClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		processEndpoint: processEndpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Process sends one multipart request with fields file and threshold. It
// does not retry.
func (c *zoomClient) Process(ctx context.Context, fileContent []byte, fileName string, threshold int) (*ProcessResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(fileContent)); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.WriteField("threshold", strconv.Itoa(threshold)); err != nil {
		return nil, fmt.Errorf("failed to write threshold: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.processEndpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach zoom processor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &ProcessorError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var result ProcessResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info().
		Str("file_name", fileName).
		Int("threshold", threshold).
		Int("attendance_rows", len(result.AttendanceRows)).
		Int("issues_rows", len(result.IssuesRows)).
		Dur("took", time.Since(start)).
		Msg("Zoom log processed")

	return &result, nil
}

// errorMessage pulls detail, error or message out of a JSON error body and
// falls back to the raw text.
func errorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(http.StatusBadGateway)
	}
	return msg
}
