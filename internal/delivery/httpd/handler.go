package httpd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/middleware"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/service"
)

// Services groups everything the handlers call into.
type Services struct {
	Auth        service.AuthService
	LateDays    service.LateDayService
	Admin       service.AdminService
	Attendance  service.AttendanceService
	Sessions    service.SessionService
	Roster      service.RosterService
	Board       service.BoardService
	Tickets     service.TicketService
	Settings    service.SettingsService
	Penalties   service.PenaltyService
	Submissions service.SubmissionService
	Zoom        service.ZoomService
}

type Handler struct {
	services     Services
	hub          *notify.Hub
	limiter      *middleware.RateLimiter
	maxBodyBytes int64
	logger       zerolog.Logger
	now          func() time.Time
}

func NewHandler(services Services, hub *notify.Hub, limiter *middleware.RateLimiter, maxBodyBytes int64, logger zerolog.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		services:     services,
		hub:          hub,
		limiter:      limiter,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	// Legacy RPC path still used by the published board page.
	router.Post("/rest/v1/rpc/get_public_attendance_board", h.PublicBoard)

	router.Route("/api/v1", func(api chi.Router) {
		api.Use(h.Authenticate)

		// Public
		api.Get("/attendance/board", h.PublicBoard)
		api.Get("/sessions", h.ListSessions)
		api.Get("/features", h.Features)

		api.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Handler)
			}
			r.Post("/auth/student/code", h.RequestStudentCode)
			r.Post("/auth/student/sign-in", h.StudentSignIn)
			r.Post("/auth/ta/sign-in", h.TASignIn)
			r.Get("/auth/ta/allowlist", h.CheckTAAllowlist)
			r.Get("/roster/check/{erp}", h.CheckRoster)
		})

		// Any signed-in user
		api.Group(func(r chi.Router) {
			r.Use(RequireAuth)
			r.Get("/auth/me", h.Me)
			r.Post("/auth/sign-out", h.SignOut)
			r.Get("/changes", h.Changes)
			r.Get("/tickets/{id}", h.GetTicket)
			r.Get("/submissions", h.ListSubmissions)
		})

		// Students
		api.Group(func(r chi.Router) {
			r.Use(RequireRole(roleStudent))
			r.Get("/late-days", h.LateDayDashboard)
			r.Post("/late-days/claims", h.SubmitClaim)
			r.Get("/attendance/me", h.MyAttendance)
			r.Post("/tickets", h.CreateTicket)
			r.Get("/tickets/mine", h.ListMyTickets)
		})

		// TAs
		api.Group(func(r chi.Router) {
			r.Use(RequireRole(roleTA))

			r.Get("/late-days/assignments", h.ListAssignments)
			r.Post("/late-days/assignments", h.CreateAssignment)
			r.Put("/late-days/assignments/{id}", h.UpdateAssignment)
			r.Post("/late-days/assignments/{id}/archive", h.ArchiveAssignment)
			r.Post("/late-days/assignments/{id}/restore", h.RestoreAssignment)
			r.Get("/late-days/claims", h.ListAllClaims)
			r.Delete("/late-days/claims/{id}", h.DeleteClaim)
			r.Post("/late-days/adjustments", h.GrantAdjustment)
			r.Get("/late-days/students/{erp}", h.StudentLedger)

			r.Post("/sessions", h.CreateSession)
			r.Delete("/sessions/{id}", h.DeleteSession)
			r.Get("/sessions/{id}/attendance", h.SessionAttendance)
			r.Post("/sessions/{id}/attendance/bulk", h.BulkMark)
			r.Post("/sessions/{id}/attendance/cycle", h.CycleStatus)
			r.Put("/sessions/{id}/attendance/naming-penalty", h.SetNamingPenalty)
			r.Get("/attendance/export", h.ExportAttendance)

			r.Get("/roster", h.ListRoster)
			r.Put("/roster", h.ReplaceRoster)
			r.Post("/roster/import", h.ImportRoster)

			r.Get("/tickets", h.ListAllTickets)
			r.Patch("/tickets/{id}", h.UpdateTicket)

			r.Get("/settings", h.ListSettings)
			r.Get("/settings/{key}", h.GetSetting)
			r.Put("/settings/{key}", h.SetSetting)

			r.Get("/penalties/types", h.ListPenaltyTypes)
			r.Get("/penalties/exceptions", h.ListRuleExceptions)
			r.Post("/penalties/exceptions", h.CreateRuleException)
			r.Delete("/penalties/exceptions/{id}", h.DeleteRuleException)

			r.Post("/submissions", h.CreateSubmission)
			r.Put("/submissions/{id}/active", h.SetSubmissionActive)

			r.Get("/tas", h.ListTAs)
			r.Post("/tas", h.AllowTA)
			r.Delete("/tas/{email}", h.RemoveTA)
			r.Get("/tas/me/password", h.GetMyPassword)
			r.Put("/tas/me/password", h.SetMyPassword)

			r.Post("/zoom/process", h.ProcessZoomLog)
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"service":   "course-portal",
		"timestamp": h.now().UTC(),
	}

	writeJSON(w, http.StatusOK, response)
}

var errEmptyBody = errors.New("request body is empty")

// requestError is a body or parameter the handler could not parse.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(format string, args ...interface{}) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &requestError{err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func confirmParam(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, http.StatusOK, response)
}

func writeCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
