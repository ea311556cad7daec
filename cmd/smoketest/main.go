package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/myrjola/whodunit/internal/e2etest"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/logging"
)

type smoketestConfig struct {
	URL string `env:"WHODUNIT_SMOKETEST_URL,required"`
}

// TestAPI checks the endpoints that work without spending provider tokens.
func TestAPI(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for healthy")
	}

	resp, err := client.Get(ctx, "/api/roster")
	if err != nil {
		return errors.Wrap(err, "get roster")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New("unexpected roster status", slog.Int("status", resp.StatusCode))
	}
	var roster struct {
		Suspects []struct {
			Name string `json:"name"`
		} `json:"suspects"`
	}
	if err = resp.Decode(&roster); err != nil {
		return errors.Wrap(err, "decode roster")
	}
	if len(roster.Suspects) == 0 {
		return errors.New("roster has no suspects")
	}

	if _, err = client.NewSession(ctx); err != nil {
		return errors.Wrap(err, "new session")
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	var (
		cfg    smoketestConfig
		client *e2etest.Client
		err    error
	)
	if err = env.Parse(&cfg); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "invalid configuration", errors.SlogError(err))
		os.Exit(1)
	}
	ctx = logging.WithAttrs(ctx, slog.String("url", cfg.URL))

	if client, err = e2etest.NewClient(cfg.URL); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestAPI(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing API", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
