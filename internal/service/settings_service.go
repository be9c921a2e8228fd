package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

type SettingsService interface {
	List(ctx context.Context, id auth.Identity) ([]models.Setting, error)
	Get(ctx context.Context, id auth.Identity, key string) (*models.Setting, error)
	Set(ctx context.Context, id auth.Identity, key string, req *models.SetSettingRequest) (*models.Setting, error)
	// Features reports the feature flags students need to render the portal.
	Features(ctx context.Context) (map[string]bool, error)
}

type settingsService struct {
	settings  repository.SettingsRepository
	validator *validation.Validator
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSettingsService(settings repository.SettingsRepository, validator *validation.Validator, publisher notify.Publisher, logger zerolog.Logger) SettingsService {
	return &settingsService{
		settings:  settings,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *settingsService) List(ctx context.Context, id auth.Identity) ([]models.Setting, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	return s.settings.List(ctx)
}

func (s *settingsService) Get(ctx context.Context, id auth.Identity, key string) (*models.Setting, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	setting, err := s.settings.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	if setting == nil {
		return nil, ErrSettingNotFound
	}
	return setting, nil
}

func (s *settingsService) Set(ctx context.Context, id auth.Identity, key string, req *models.SetSettingRequest) (*models.Setting, error) {
	if err := requireTA(id); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 64 {
		return nil, NewValidationError(errInvalidRequest, validation.FieldError{Field: "key", Error: "key must be 1 to 64 characters"})
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	setting := &models.Setting{Key: key, Value: req.Value, UpdatedAt: s.now().UTC()}
	if err := s.settings.Set(ctx, setting.Key, setting.Value, setting.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to save setting: %w", err)
	}

	s.logger.Info().Str("key", key).Str("updated_by", id.Email).Msg("Setting updated")
	publish(ctx, s.publisher, s.logger, "app_settings", models.ChangeUpdate, setting, map[string]string{"key": key})
	return setting, nil
}

func (s *settingsService) Features(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, 2)
	for _, key := range []string{SettingLateDaysEnabled, SettingTicketsEnabled} {
		enabled, err := featureEnabled(ctx, s.settings, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		out[key] = enabled
	}
	return out, nil
}
