// Package server initializes and runs the main application server: it opens
// the database, runs schema migrations, wires services, and starts the HTTP
// endpoint with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/picvault/picvault/internal/cryptox"
	"github.com/picvault/picvault/internal/logging"
	"github.com/picvault/picvault/internal/server/auth"
	"github.com/picvault/picvault/internal/server/config"
	"github.com/picvault/picvault/internal/server/httpapi"
	"github.com/picvault/picvault/internal/server/repositories/repomanager"
	"github.com/picvault/picvault/internal/server/services"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	tokens       *auth.TokenService
	authService  *services.AuthService
	userService  *services.UserService
	imageService *services.ImageService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	cipher, err := cryptox.NewSecretCipher(cfg.CipherPassword, cfg.CipherSalt)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	tokens := auth.NewTokenService(cfg.SecretKey, cfg.AccessTokenValidityDuration)

	return &App{
		config:       cfg,
		logger:       logger,
		db:           db,
		tokens:       tokens,
		authService:  services.NewAuthService(db, m, tokens, cipher, cfg, logger),
		userService:  services.NewUserService(db, m, logger),
		imageService: services.NewImageService(db, m, cfg, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger,
		app.tokens, app.authService, app.userService, app.imageService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
