package httpd

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/service"
)

var notFoundErrors = []error{
	service.ErrAssignmentNotFound,
	service.ErrClaimNotFound,
	service.ErrSessionNotFound,
	service.ErrStudentNotFound,
	service.ErrTicketNotFound,
	service.ErrSettingNotFound,
	service.ErrSubmissionNotFound,
	service.ErrPenaltyNotFound,
	service.ErrExceptionNotFound,
	service.ErrTANotFound,
	service.ErrAttendanceNotFound,
}

// handleError maps service errors onto HTTP responses. Anything it does not
// recognise is logged and reported as a generic 500.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *service.ValidationError
		remoteErr     *service.RemoteError
		confirmErr    *service.ConfirmationRequiredError
	)

	switch {
	case errors.As(err, &validationErr):
		body := map[string]interface{}{
			"error":   http.StatusText(http.StatusBadRequest),
			"message": validationErr.Error(),
		}
		if len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		}
		writeJSON(w, http.StatusBadRequest, body)

	case errors.As(err, &remoteErr):
		writeError(w, http.StatusUnprocessableEntity, remoteErr.Message)

	case errors.As(err, &confirmErr):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":                 http.StatusText(http.StatusConflict),
			"message":               confirmErr.Prompt,
			"confirmation_required": true,
		})

	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotAllowlisted),
		errors.Is(err, service.ErrNotInstitutionEmail),
		errors.Is(err, service.ErrNotOnRoster),
		errors.Is(err, service.ErrRosterEmailMissing):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":   http.StatusText(http.StatusForbidden),
			"message": err.Error(),
			"blocked": true,
		})

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrPasswordNotSet):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, service.ErrFeatureDisabled):
		writeError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrDuplicate),
		errors.Is(err, service.ErrAlreadyArchived):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, errEmptyBody), errors.Is(err, notify.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())

	case isNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, context.Canceled):
		// Client went away; nobody is reading the response.
		w.WriteHeader(499)

	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "The request took too long. Please try again.")

	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
			return
		}
		if isDecodeError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func isNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isDecodeError(err error) bool {
	var reqErr *requestError
	return errors.As(err, &reqErr)
}
