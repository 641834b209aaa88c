// Package accountctl implements the operator command line for the account
// service. It talks to the database directly and manages the marker rows
// the public API never exposes.
package accountctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/accounts/internal/flagx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// configFlags are the flags that take a value, shared with the server
// configuration layers.
var configFlags = []string{"-a", "-g", "-d", "-s", "-k", "-t", "-w", "-l", "-m", "-q", "-c", "-config", "--config", "-env"}

// ErrUsage is returned for an unknown command or missing operand.
var ErrUsage = errors.New("usage error")

// Accounts is the slice of the account service accountctl drives.
type Accounts interface {
	Apply(ctx context.Context, m services.Marker, ref string) (bool, error)
	State(ctx context.Context, ref string) (*models.User, models.AccountState, error)
	CreateAdmin(ctx context.Context, in services.RegisterInput) (*models.User, error)
}

type App struct {
	accounts Accounts
	migrate  func(ctx context.Context) error
	closer   io.Closer
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)
	rm := repomanager.NewPostgresRepositoryManager()
	authSvc := services.NewAuthService(db, rm, c, events.Nop{}, logger)

	return &App{
		accounts: services.NewAccountService(db, rm, authSvc, logger),
		migrate:  func(ctx context.Context) error { return rm.RunMigrations(ctx, db) },
		closer:   db,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}, nil
}

// Run executes the command found among args. Flags consumed by the
// configuration layers may appear anywhere and are skipped.
func (a *App) Run(ctx context.Context, args []string) error {
	if a.closer != nil {
		defer a.closer.Close()
	}

	pos := flagx.Positional(args, configFlags)
	if len(pos) == 0 {
		a.usage()
		return ErrUsage
	}

	cmd, rest := pos[0], pos[1:]

	switch cmd {
	case "help":
		a.usage()
		return nil
	case "migrate":
		if err := a.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "migrations applied")
		return nil
	case "state":
		if len(rest) != 1 {
			return a.usageErr("state <email|id>")
		}
		return a.state(ctx, rest[0])
	case "create-admin":
		return a.createAdmin(ctx)
	}

	for _, m := range services.Markers {
		if cmd == string(m) {
			if len(rest) != 1 {
				return a.usageErr(cmd + " <email|id>")
			}
			return a.apply(ctx, m, rest[0])
		}
	}

	fmt.Fprintln(a.out, "Unknown command:", cmd)
	a.usage()
	return ErrUsage
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: accountctl [flags] <command> [email|id]")
	fmt.Fprint(a.out, "Commands: migrate, state, create-admin")
	for _, m := range services.Markers {
		fmt.Fprint(a.out, ", ", m)
	}
	fmt.Fprintln(a.out)
}

func (a *App) usageErr(s string) error {
	fmt.Fprintln(a.out, "Usage: accountctl", s)
	return ErrUsage
}

func (a *App) apply(ctx context.Context, m services.Marker, ref string) error {
	changed, err := a.accounts.Apply(ctx, m, ref)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(a.out, "%s: done\n", m)
	} else {
		fmt.Fprintf(a.out, "%s: nothing to change\n", m)
	}
	return nil
}

func (a *App) state(ctx context.Context, ref string) error {
	u, st, err := a.accounts.State(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:     %s\nemail:  %s\nstatus: %s\nadmin:  %t\n", u.ID, u.Email, st.Status, st.Admin)
	return nil
}
