// Command portaladmin runs one-off administrative tasks against the portal
// database: migrations, TA allowlisting, TA passwords and late-day grants.
package main

import (
	"fmt"
	"os"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/config"
	"github.com/courseportal/portal/internal/database"
	"github.com/courseportal/portal/internal/mail"
	"github.com/courseportal/portal/internal/repository"
	"github.com/courseportal/portal/internal/service"
	"github.com/courseportal/portal/internal/validation"
	"github.com/courseportal/portal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "portaladmin: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewStderr(cfg.Logging.Level)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}
	cipher, err := auth.NewPasswordCipher(cfg.Auth.PasswordSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create password cipher")
	}

	codes, err := auth.NewCodes(cfg.Auth.SignInCodeTTL, cfg.Auth.SignInCodeAttempts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sign-in codes")
	}

	validator := validation.New()
	rosterRepo := repository.NewRosterRepository(db, log)
	lateDayRepo := repository.NewLateDayRepository(db, log)

	cli := commandLine{
		auth:  service.NewAuthService(rosterRepo, repository.NewTARepository(db, log), tokens, cipher, codes, mail.NewLogMailer(log), cfg.Auth.StudentEmailDomains, validator, log),
		admin: service.NewAdminService(lateDayRepo, rosterRepo, validator, nil, log),
		migrator: func() (migrator, error) {
			return database.NewMigrator(cfg.Database)
		},
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}
