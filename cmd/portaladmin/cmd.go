package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/courseportal/portal/internal/auth"
	"github.com/courseportal/portal/internal/models"
	"github.com/courseportal/portal/internal/service"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Version() (uint, bool, error)
}

type commandLine struct {
	auth     service.AuthService
	admin    service.AdminService
	migrator func() (migrator, error)
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate -direction up|down|force|version [-version N]")
	fmt.Fprintln(cli.out, "  allow-ta -email EMAIL                            - add an email to the TA allowlist")
	fmt.Fprintln(cli.out, "  ta-password -email EMAIL                         - set a TA password (prompted)")
	fmt.Fprintln(cli.out, "  grant-late-days -erp ERP -days N [-reason TEXT] [-as EMAIL]")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		cmd := cli.flagSet("migrate")
		direction := cmd.String("direction", "up", "up, down, force or version")
		version := cmd.Int("version", -1, "version to force")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.migrate(*direction, *version)

	case "allow-ta":
		cmd := cli.flagSet("allow-ta")
		email := cmd.String("email", "", "TA email")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		if err := cli.auth.AllowTA(ctx, *email); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s is on the TA allowlist\n", strings.ToLower(strings.TrimSpace(*email)))
		return nil

	case "ta-password":
		cmd := cli.flagSet("ta-password")
		email := cmd.String("email", "", "TA email. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" {
			cmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cmd.Usage()
			return errHelp
		}
		if err := cli.auth.SetTAPassword(ctx, *email, string(pwd)); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Password updated")
		return nil

	case "grant-late-days":
		cmd := cli.flagSet("grant-late-days")
		erp := cmd.String("erp", "", "student ERP")
		days := cmd.Int("days", 0, "days to add (negative to remove)")
		reason := cmd.String("reason", "", "reason recorded with the grant")
		as := cmd.String("as", "portaladmin", "email recorded as the granting TA")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *erp == "" || *days == 0 {
			cmd.Usage()
			return errHelp
		}
		id := auth.Identity{Email: *as, Role: auth.RoleTA}
		adj, err := cli.admin.GrantAdjustment(ctx, id, &models.GrantAdjustmentRequest{
			StudentERP: *erp,
			DaysDelta:  *days,
			Reason:     *reason,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Granted %+d day(s) to %s\n", adj.DaysDelta, adj.StudentERP)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) migrate(direction string, version int) error {
	switch direction {
	case "up", "down", "force", "version":
	default:
		return fmt.Errorf("%q: no such direction", direction)
	}
	if direction == "force" && version < 0 {
		return errors.New("force needs -version")
	}

	m, err := cli.migrator()
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		err = m.Force(version)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			fmt.Fprintf(cli.out, "version %d (dirty: %t)\n", v, dirty)
			return nil
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "migrate %s: done\n", direction)
	return nil
}
