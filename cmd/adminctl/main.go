// Package main is the operator CLI for admin accounts: it creates accounts,
// resets passwords, toggles activation and purges stale sessions directly
// against the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atinyakov/tavola/internal/config"
	"github.com/atinyakov/tavola/internal/db"
	"github.com/atinyakov/tavola/internal/models"
	"github.com/atinyakov/tavola/internal/repository"
	"github.com/atinyakov/tavola/internal/service"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const usage = `usage: adminctl [-c config.yaml] [-d dsn] <command> [flags]

commands:
  create -username NAME [-email EMAIL]   create an active account
  passwd -username NAME                  set a new password
  deactivate -username NAME              disable an account and end its sessions
  activate -username NAME                re-enable an account
  list                                   list accounts
  sessions-purge                         delete sessions idle past the timeout`

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() (string, error) {
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(pw), err
}

// admins is the part of service.AdminService the commands use.
type admins interface {
	Create(ctx context.Context, username, email, password string) (*models.AdminUser, error)
	SetPassword(ctx context.Context, username, password string) error
	SetActive(ctx context.Context, username string, active bool) error
	List(ctx context.Context) ([]models.AdminUser, error)
	PurgeSessions(ctx context.Context, window time.Duration) (int64, error)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, connect); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

type connector func(ctx context.Context, dsn string) (admins, func(), error)

func connect(ctx context.Context, dsn string) (admins, func(), error) {
	conn, err := db.InitPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
	svc := service.NewAdminService(
		repository.NewAdminUserRepository(conn),
		repository.NewSessionRepository(conn),
		log,
	)
	return svc, func() {
		_ = log.Sync()
		_ = conn.Close()
	}, nil
}

func run(ctx context.Context, args []string, out io.Writer, open connector) error {
	global := flag.NewFlagSet("adminctl", flag.ContinueOnError)
	global.SetOutput(out)
	configPath := global.String("c", "config.yaml", "path to config file")
	dsn := global.String("d", "", "database DSN (overrides config)")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		fmt.Fprintln(out, usage)
		return errors.New("missing command")
	}

	options, err := config.Load([]string{"-c", *configPath})
	if err != nil {
		return err
	}
	if *dsn != "" {
		options.DatabaseDSN = *dsn
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if !known(cmd) {
		fmt.Fprintln(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	svc, closeFn, err := open(ctx, options.DatabaseDSN)
	if err != nil {
		return err
	}
	defer closeFn()

	return execute(ctx, svc, cmd, rest, options.Session.InactivityTimeout, out)
}

func known(cmd string) bool {
	switch cmd {
	case "create", "passwd", "deactivate", "activate", "list", "sessions-purge":
		return true
	}
	return false
}

func execute(ctx context.Context, svc admins, cmd string, args []string, window time.Duration, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "contact address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	needUser := cmd != "list" && cmd != "sessions-purge"
	if needUser && strings.TrimSpace(*username) == "" {
		return errors.New("-username is required")
	}

	switch cmd {
	case "create":
		password, err := newPassword(out)
		if err != nil {
			return err
		}
		u, err := svc.Create(ctx, *username, *email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s (%s)\n", u.Username, u.ID)
	case "passwd":
		password, err := newPassword(out)
		if err != nil {
			return err
		}
		if err := svc.SetPassword(ctx, *username, password); err != nil {
			return err
		}
		fmt.Fprintf(out, "password updated for %s\n", *username)
	case "deactivate", "activate":
		active := cmd == "activate"
		if err := svc.SetActive(ctx, *username, active); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %sd\n", *username, cmd)
	case "list":
		users, err := svc.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tEMAIL\tACTIVE\tLAST LOGIN")
		for _, u := range users {
			last := "never"
			if u.LastLoginAt != nil {
				last = u.LastLoginAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", u.Username, u.Email, u.Active, last)
		}
		return tw.Flush()
	case "sessions-purge":
		n, err := svc.PurgeSessions(ctx, window)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "purged %d sessions\n", n)
	}
	return nil
}

// newPassword reads a password twice and checks both entries match.
func newPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "New password: ")
	first, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	if first == "" {
		return "", errors.New("password must not be empty")
	}
	return first, nil
}
