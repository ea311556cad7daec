package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/whodunit/internal/errors"
)

const (
	KindOpenAI = "openai"
	KindGemini = "gemini"
)

// Settings selects and configures a provider.
type Settings struct {
	Kind    string
	OpenAI  OpenAIConfig
	Gemini  GeminiConfig
	Timeout time.Duration
}

// Open builds the provider named by s.Kind with every call bounded by s.Timeout. The returned close function
// releases the provider's connections.
func Open(ctx context.Context, s Settings, logger *slog.Logger) (Provider, func() error, error) {
	switch s.Kind {
	case KindOpenAI:
		return WithTimeout(NewOpenAIProvider(s.OpenAI, logger), s.Timeout), func() error { return nil }, nil
	case KindGemini:
		p, err := NewGeminiProvider(ctx, s.Gemini, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "new gemini provider")
		}
		return WithTimeout(p, s.Timeout), p.Close, nil
	default:
		return nil, nil, errors.New("unknown provider", slog.String("provider", s.Kind))
	}
}
