package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/whodunit/internal/config"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/repositories"
	"github.com/myrjola/whodunit/internal/sqlite"
	"github.com/myrjola/whodunit/internal/testhelpers"
)

// run migrates the configured database to the current schema and counts the recorded turns as a simple smoke test.
func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "create database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		_ = db.Close()
	}()

	count, err := repositories.NewTurnRepository(db, logger).CountTurns(ctx)
	if err != nil {
		return errors.Wrap(err, "count turns")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "turn count", slog.Int("count", count))
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd // 5 seconds

	err := run(ctx, logger)
	cancel()
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "Migration test failed", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
}
