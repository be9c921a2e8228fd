package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/config"
	"github.com/courseportal/portal/internal/delivery/httpd"
	"github.com/courseportal/portal/internal/mail"
	"github.com/courseportal/portal/internal/middleware"
	"github.com/courseportal/portal/internal/notify"
	"github.com/courseportal/portal/internal/obs"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/service"
	"github.com/courseportal/portal/internal/service/integration"
	"github.com/courseportal/portal/internal/storage"
	"github.com/courseportal/portal/internal/validation"
)

const (
	changesPath = "/api/v1/changes"
	hubBuffer   = 64
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
}

type App struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.Config
	db      *sql.DB
	broker  *notify.Broker
	hub     *notify.Hub
	metrics *obs.Metrics

	cancelForward context.CancelFunc
	forwardDone   chan struct{}
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB, build BuildInfo) (*App, error) {
	validator := validation.New()

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	cipher, err := auth.NewPasswordCipher(cfg.Auth.PasswordSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create password cipher: %w", err)
	}

	codes, err := auth.NewCodes(cfg.Auth.SignInCodeTTL, cfg.Auth.SignInCodeAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in codes: %w", err)
	}
	mailer, err := mail.New(cfg.Mail, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}
	if cfg.Mail.Provider == "log" {
		log.Warn().Msg("Mail provider is log, sign-in codes are written to the log")
	}

	metrics := obs.New()
	metrics.SetBuildInfo(build.Version, build.Commit)

	a := &App{
		logger:  log,
		config:  cfg,
		db:      db,
		hub:     notify.NewHub(hubBuffer),
		metrics: metrics,
	}

	// Without RabbitMQ events go straight to the in-process hub. With it they
	// go through the broker and come back to every instance's hub.
	var publisher notify.Publisher = a.hub
	if cfg.RabbitMQ.Enabled {
		broker, err := notify.NewBroker(
			cfg.RabbitMQ.URL,
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.RoutingKey,
			cfg.RabbitMQ.QueueName,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create RabbitMQ broker, live updates stay local")
		} else {
			a.broker = broker
			publisher = broker
		}
	}

	var archive storage.Archive
	if cfg.Storage.Enabled {
		minioArchive, err := storage.NewMinIOArchive(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.Bucket,
			cfg.Storage.Region,
			cfg.Storage.UseSSL,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create MinIO client, archiving disabled")
		} else {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Storage.Timeout)*time.Second)
			if err := minioArchive.Ping(pingCtx); err != nil {
				log.Warn().Err(err).Msg("MinIO is not reachable yet")
			}
			cancel()
			archive = minioArchive
		}
	}

	zoomClient := integration.NewZoomClient(cfg.Zoom.URL, cfg.Zoom.ProcessEndpoint, cfg.Zoom.Timeout, log)

	// Repositories
	lateDayRepo := repository.NewLateDayRepository(db, log)
	attendanceRepo := repository.NewAttendanceRepository(db, log)
	sessionRepo := repository.NewSessionRepository(db, log)
	rosterRepo := repository.NewRosterRepository(db, log)
	settingsRepo := repository.NewSettingsRepository(db, log)
	ticketRepo := repository.NewTicketRepository(db, log)
	taRepo := repository.NewTARepository(db, log)
	penaltyRepo := repository.NewPenaltyRepository(db, log)
	submissionRepo := repository.NewSubmissionRepository(db, log)

	// Services
	services := httpd.Services{
		Auth:        service.NewAuthService(rosterRepo, taRepo, tokens, cipher, codes, mailer, cfg.Auth.StudentEmailDomains, validator, log),
		LateDays:    service.NewLateDayService(lateDayRepo, settingsRepo, validator, publisher, metrics, log),
		Admin:       service.NewAdminService(lateDayRepo, rosterRepo, validator, publisher, log),
		Attendance:  service.NewAttendanceService(attendanceRepo, sessionRepo, rosterRepo, publisher, metrics, log),
		Sessions:    service.NewSessionService(sessionRepo, attendanceRepo, validator, publisher, log),
		Roster:      service.NewRosterService(rosterRepo, validator, log),
		Board:       service.NewBoardService(attendanceRepo, archive, log),
		Tickets:     service.NewTicketService(ticketRepo, settingsRepo, validator, publisher, log),
		Settings:    service.NewSettingsService(settingsRepo, validator, publisher, log),
		Penalties:   service.NewPenaltyService(penaltyRepo, rosterRepo, validator, log),
		Submissions: service.NewSubmissionService(submissionRepo, validator, log),
		Zoom:        service.NewZoomService(zoomClient, settingsRepo, archive, cfg.Zoom.DefaultThreshold, metrics, log),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	handler := httpd.NewHandler(services, a.hub, limiter, cfg.Server.MaxBodyBytes, log)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(metrics.Instrument)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout, changesPath))
	router.Use(middleware.NewCORS(cfg.CORS))

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}
	handler.RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until Shutdown. When RabbitMQ is enabled it also relays
// broker events into the local hub.
func (a *App) Run() error {
	if a.broker != nil {
		ctx, cancel := context.WithCancel(context.Background())
		a.cancelForward = cancel
		a.forwardDone = make(chan struct{})
		go func() {
			defer close(a.forwardDone)
			if err := a.broker.Forward(ctx, a.hub); err != nil {
				a.logger.Error().Err(err).Msg("Change event relay stopped")
			}
		}()
	}

	a.logger.Info().Msgf("Starting course portal on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down course portal...")

	err := a.server.Shutdown(ctx)

	if a.cancelForward != nil {
		a.cancelForward()
		select {
		case <-a.forwardDone:
		case <-ctx.Done():
		}
	}

	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return err
}
