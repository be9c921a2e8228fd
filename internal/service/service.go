// Package service holds the portal's use cases. Services check the caller's
// identity, validate input, call the repositories and publish change events.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/validation"
)

// Feature flags stored in app_settings.
const (
	SettingLateDaysEnabled = "late_days_enabled"
	SettingTicketsEnabled  = "tickets_enabled"
	SettingZoomThreshold   = "zoom_threshold"
)

var errInvalidRequest = errors.New("invalid request")

func requireTA(id auth.Identity) error {
	if !id.IsTA() {
		return ErrForbidden
	}
	return nil
}

func requireStudent(id auth.Identity) error {
	if !id.IsStudent() {
		return ErrForbidden
	}
	return nil
}

func validate(v *validation.Validator, req any) error {
	if fields := v.Struct(req); len(fields) > 0 {
		return NewValidationError(errInvalidRequest, fields...)
	}
	return nil
}

// featureEnabled treats a missing setting as enabled.
func featureEnabled(ctx context.Context, settings repository.SettingsRepository, key string) (bool, error) {
	s, err := settings.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if s == nil {
		return true, nil
	}
	switch strings.ToLower(strings.TrimSpace(s.Value)) {
	case "false", "0", "off", "no":
		return false, nil
	}
	return true, nil
}

// publish sends a change event. Delivery is best effort, so failures are
// only logged.
func publish(ctx context.Context, pub notify.Publisher, logger zerolog.Logger, table string, typ models.ChangeEventType, record any, columns map[string]string) {
	if pub == nil {
		return
	}
	evt, err := notify.NewEvent(table, typ, record, columns)
	if err == nil {
		err = pub.Publish(ctx, evt)
	}
	if err != nil {
		logger.Warn().Err(err).Str("table", table).Str("type", string(typ)).Msg("Failed to publish change event")
	}
}
