// Package config reads the server and CLI configuration from the environment.
package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/errors"
)

const (
	ProviderOpenAI = ai.KindOpenAI
	ProviderGemini = ai.KindGemini
)

var ErrInvalidConfig = errors.NewSentinel("invalid configuration")

type Config struct {
	Addr      string `env:"WHODUNIT_ADDR" envDefault:"localhost:4000"`
	SqliteURL string `env:"WHODUNIT_SQLITE_URL" envDefault:"./whodunit.sqlite"`
	// PprofAddr enables the pprof server when set. Keep it on loopback.
	PprofAddr string `env:"WHODUNIT_PPROF_ADDR"`

	Provider        string `env:"WHODUNIT_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	OpenAIModel     string `env:"WHODUNIT_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"WHODUNIT_GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	MaxOutputTokens int    `env:"WHODUNIT_MAX_OUTPUT_TOKENS" envDefault:"500"`

	ProviderTimeout      time.Duration `env:"WHODUNIT_PROVIDER_TIMEOUT" envDefault:"30s"`
	RequestTimeout       time.Duration `env:"WHODUNIT_REQUEST_TIMEOUT" envDefault:"60s"`
	SessionIdleTimeout   time.Duration `env:"WHODUNIT_SESSION_IDLE_TIMEOUT" envDefault:"2h"`
	SessionSweepInterval time.Duration `env:"WHODUNIT_SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	CookieLifetime       time.Duration `env:"WHODUNIT_COOKIE_LIFETIME" envDefault:"12h"`
	// TurnRetention is how long recorded turns are kept in the audit log.
	TurnRetention        time.Duration `env:"WHODUNIT_TURN_RETENTION" envDefault:"720h"`

	// OTelEndpoint is an OTLP/HTTP collector URL such as http://localhost:4318. Tracing is off when empty.
	OTelEndpoint string `env:"WHODUNIT_OTEL_ENDPOINT"`
}

// Load parses the configuration from environment, or from the process environment when environment is nil, and
// validates it.
func Load(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, errors.Wrap(errors.Join(ErrInvalidConfig, err), "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once. A missing key for the selected provider is fatal at startup.
func (c Config) Validate() error {
	var problems []error
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			problems = append(problems, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		problems = append(problems, errors.New("unknown provider", slog.String("provider", c.Provider)))
	}
	if c.MaxOutputTokens <= 0 {
		problems = append(problems, errors.New("max output tokens must be positive",
			slog.Int("max_output_tokens", c.MaxOutputTokens)))
	}
	durations := []struct {
		name  string
		value time.Duration
	}{
		{name: "WHODUNIT_PROVIDER_TIMEOUT", value: c.ProviderTimeout},
		{name: "WHODUNIT_REQUEST_TIMEOUT", value: c.RequestTimeout},
		{name: "WHODUNIT_SESSION_IDLE_TIMEOUT", value: c.SessionIdleTimeout},
		{name: "WHODUNIT_SESSION_SWEEP_INTERVAL", value: c.SessionSweepInterval},
		{name: "WHODUNIT_COOKIE_LIFETIME", value: c.CookieLifetime},
		{name: "WHODUNIT_TURN_RETENTION", value: c.TurnRetention},
	}
	for _, d := range durations {
		if d.value <= 0 {
			problems = append(problems, errors.New("duration must be positive",
				slog.String("name", d.name), slog.Duration("value", d.value)))
		}
	}
	if len(problems) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, problems...)...)
	}
	return nil
}

// ProviderSettings is the part of c that selects and configures the text generator.
func (c Config) ProviderSettings() ai.Settings {
	return ai.Settings{
		Kind: c.Provider,
		OpenAI: ai.OpenAIConfig{
			APIKey:  c.OpenAIAPIKey,
			BaseURL: c.OpenAIBaseURL,
			Model:   c.OpenAIModel,
		},
		Gemini: ai.GeminiConfig{
			APIKey: c.GeminiAPIKey,
			Model:  c.GeminiModel,
		},
		Timeout: c.ProviderTimeout,
	}
}
