package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/config"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/logging"
	"github.com/myrjola/whodunit/internal/otel"
	"github.com/myrjola/whodunit/internal/pprofserver"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/myrjola/whodunit/internal/sqlite"
)

const serviceName = "whodunit"

type application struct {
	logger         *slog.Logger
	game           *game.Service
	sessionManager *scs.SessionManager
	requestTimeout time.Duration
}

func run(ctx context.Context, logger *slog.Logger, environment map[string]string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(environment)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return errors.Wrap(err, "setup tracing")
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "failed to flush traces", errors.SlogError(shutdownErr))
		}
	}()

	// Keep pprof on loopback so that it's not open to the world.
	if cfg.PprofAddr != "" {
		if _, err = pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "failed to close database", errors.SlogError(closeErr))
		}
	}()

	provider, closeProvider, err := ai.Open(ctx, cfg.ProviderSettings(), logger)
	if err != nil {
		return errors.Wrap(err, "open provider")
	}
	defer func() {
		if closeErr := closeProvider(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "failed to close provider", errors.SlogError(closeErr))
		}
	}()

	store := game.NewStore(logger, game.StoreConfig{ //nolint:exhaustruct // defaults for generator and clock
		TokenLimit:  cfg.MaxOutputTokens,
		IdleTimeout: cfg.SessionIdleTimeout,
	})
	go store.Run(ctx, cfg.SessionSweepInterval)

	turns := repositories.NewTurnRepository(db, logger)
	go turns.RunRetention(ctx, cfg.TurnRetention, time.Hour)

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 30*time.Minute) //nolint:mnd // 30m
	sessionManager := scs.New()
	sessionManager.Store = sessionStore
	sessionManager.Lifetime = cfg.CookieLifetime
	sessionManager.Cookie.Name = "whodunit_session"
	sessionManager.Cookie.Secure = true

	app := application{
		logger:         logger,
		game:           game.NewService(logger, store, provider, turns),
		sessionManager: sessionManager,
		requestTimeout: cfg.RequestTimeout,
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "configured server",
		slog.String("provider", cfg.Provider), slog.Bool("tracing", cfg.OTelEndpoint != ""))

	return app.configureAndStartServer(ctx, cfg.Addr)
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
	logger := slog.New(loggerHandler)

	// The .env file is optional. Deployed servers get their configuration from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, nil); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
