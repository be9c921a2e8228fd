package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/obs"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/service/integration"
	"github.com/courseportal/portal/internal/storage"
	"github.com/courseportal/portal/internal/validation"
)

const maxZoomLogBytes = 10 << 20

type ZoomService interface {
	// Process forwards a Zoom participant log to the processor. threshold
	// is a percentage; nil uses the configured value.
	Process(ctx context.Context, id auth.Identity, fileName string, content []byte, threshold *int) (*integration.ProcessResult, error)
}

type zoomService struct {
	client           integration.ZoomClient
	settings         repository.SettingsRepository
	archive          storage.Archive
	defaultThreshold int
	metrics          *obs.Metrics
	logger           zerolog.Logger
	now              func() time.Time
}

func NewZoomService(
	client integration.ZoomClient,
	settings repository.SettingsRepository,
	archive storage.Archive,
	defaultThreshold int,
	metrics *obs.Metrics,
	logger zerolog.Logger,
) ZoomService {
	return &zoomService{
		client:           client,
		settings:         settings,
		archive:          archive,
		defaultThreshold: defaultThreshold,
		metrics:          metrics,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *zoomService) threshold(ctx context.Context, requested *int) (int, error) {
	if requested != nil {
		return *requested, nil
	}
	setting, err := s.settings.Get(ctx, SettingZoomThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to read settings: %w", err)
	}
	if setting != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(setting.Value)); err == nil {
			return n, nil
		}
	}
	return s.defaultThreshold, nil
}

func (s *zoomService) Process(ctx context.Context, id auth.Identity, fileName string, content []byte, threshold *int) (*integration.ProcessResult, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	switch {
	case len(content) == 0:
		return nil, NewValidationError(errInvalidRequest, validation.FieldError{Field: "file", Error: "file is required"})
	case len(content) > maxZoomLogBytes:
		return nil, NewValidationError(errInvalidRequest, validation.FieldError{Field: "file", Error: "file must be at most 10 MB"})
	}

	t, err := s.threshold(ctx, threshold)
	if err != nil {
		return nil, err
	}
	if t < 0 || t > 100 {
		return nil, NewValidationError(errInvalidRequest, validation.FieldError{Field: "threshold", Error: "threshold must be between 0 and 100"})
	}

	if s.archive != nil {
		key := storage.Key("zoom-logs", fileName, s.now())
		if err := s.archive.Put(ctx, key, "text/csv", bytes.NewReader(content), int64(len(content))); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to archive zoom log")
		}
	}

	result, err := s.client.Process(ctx, content, fileName, t)
	if err != nil {
		var perr *integration.ProcessorError
		if errors.As(err, &perr) {
			s.metrics.ZoomUploadRecorded(obs.OutcomeRejected)
			return nil, &RemoteError{Procedure: "zoom_process", Message: perr.Message}
		}
		s.metrics.ZoomUploadRecorded(obs.OutcomeError)
		return nil, err
	}
	s.metrics.ZoomUploadRecorded(obs.OutcomeSuccess)

	s.logger.Info().
		Str("file_name", fileName).
		Int("threshold", t).
		Str("uploaded_by", id.Email).
		Msg("Zoom log uploaded")
	return result, nil
}
