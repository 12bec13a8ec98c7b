// Package server wires the gateway together: configuration, logging, the
// database pool and migrations, the OAuth provider, Drive, mail, services,
// and the HTTP and gRPC health servers with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/dbx"
	"github.com/dmitrijs2005/drivelink/internal/logging"
	"github.com/dmitrijs2005/drivelink/internal/server/config"
	"github.com/dmitrijs2005/drivelink/internal/server/drive"
	"github.com/dmitrijs2005/drivelink/internal/server/health"
	"github.com/dmitrijs2005/drivelink/internal/server/httpapi"
	"github.com/dmitrijs2005/drivelink/internal/server/mail"
	"github.com/dmitrijs2005/drivelink/internal/server/provider"
	"github.com/dmitrijs2005/drivelink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/drivelink/internal/server/services"
)

// healthInterval is how often the health server pings the database.
const healthInterval = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	health *health.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := dbx.Open(ctx, c.DatabaseDSN, dbx.PoolOptions{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxOpenConns,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	google := provider.NewGoogle(provider.Options{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.GoogleRedirectURL,
		TokenInfoURL: c.TokenInfoURL,
		UserInfoURL:  c.UserInfoURL,
		RevokeURL:    c.RevokeURL,
		HTTPClient:   &http.Client{Timeout: c.ProviderTimeout},
	})

	var mailer mail.Sender = mail.LogSender{Logger: logger.With("module", "mail")}
	if c.MailHost != "" {
		mailer = mail.NewClient(mail.Config{
			Host:     c.MailHost,
			Port:     c.MailPort,
			Username: c.MailUser,
			Password: c.MailPassword,
			From:     c.MailFrom,
		}, logger.With("module", "mail"))
	}

	links := services.NewLinkService(db, rm, google, logger)
	accounts := services.NewAccountService(db, rm, mailer, c, logger)
	files := services.NewFileService(drive.New(google.Client, c.DriveEndpoint), c, logger)

	hs := health.NewServer(c.HealthAddr, db, healthInterval, logger)
	handler := httpapi.NewHandler(links, accounts, files, hs, []byte(c.SecretKey), logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(c.HTTPAddr, handler, logger),
		health: hs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runServer runs one server and cancels the whole app when it fails.
func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped with error", "server", name, "error", err)
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or a server fails, then
// waits for both servers to stop and closes the database pool.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "health", app.health.Run)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
