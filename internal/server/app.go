// Package server initializes and runs the account service: it opens the
// database, applies migrations, wires services and runs the REST and gRPC
// health servers until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/httpapi"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/accounts/internal/server/grpc"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	events         events.Publisher
	authService    *services.AuthService
	profileService *services.ProfileService
}

// dialEvents is a seam for tests.
var dialEvents = func(url, exchange string) (events.Publisher, error) {
	return events.DialAMQP(url, exchange)
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var pub events.Publisher = events.Nop{}
	if c.AMQPURL != "" {
		pub, err = dialEvents(c.AMQPURL, c.EventsExchange)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("events init error: %w", err)
		}
	}

	rm := repomanager.NewPostgresRepositoryManager()

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		repomanager:    rm,
		events:         pub,
		authService:    services.NewAuthService(db, rm, c, pub, logger),
		profileService: services.NewProfileService(db, rm, c, pub, logger),
	}, nil
}

// initSignalHandler cancels on the first SIGINT, SIGTERM or SIGQUIT. The
// returned channel is closed once the handler has unregistered, after a
// signal or when ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer signal.Stop(sigs)

		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return stopped
}

func (app *App) router() *gin.Engine {
	if app.config.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewRouter(httpapi.Deps{
		Auth:               app.authService,
		Profiles:           app.profileService,
		DB:                 app.db,
		Logger:             app.logger,
		RequestTimeout:     app.config.RequestTimeout,
		CORSAllowedOrigins: app.config.CORSAllowedOrigins,
	})
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.router(), app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger, app.db, app.config.HealthCheckInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema and serves until ctx is cancelled or a signal
// arrives. Resources are released before it returns.
func (app *App) Run(ctx context.Context) error {
	defer app.close()

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	stopped := app.initSignalHandler(ctx, cancelFunc)
	defer func() {
		cancelFunc()
		<-stopped
	}()

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}

func (app *App) close() {
	err := errors.Join(app.events.Close(), app.db.Close())
	if err != nil {
		app.logger.Error(context.Background(), "shutdown", "error", err)
	}
}
