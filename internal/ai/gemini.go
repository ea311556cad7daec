package ai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/myrjola/whodunit/internal/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider maps conversations onto a throwaway genai.ChatSession per call.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "new genai client")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model, logger: logger}, nil
}

func (p *GeminiProvider) Close() error {
	if err := p.client.Close(); err != nil {
		return errors.Wrap(err, "close genai client")
	}
	return nil
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	system, turns := instruction(req.Messages)
	if len(turns) == 0 || turns[len(turns)-1].Role != RolePlayer {
		return "", failure(nil, "conversation must end with a player turn", false)
	}

	model := p.client.GenerativeModel(p.model)
	configureModel(model, system, req.MaxTokens)
	chat := model.StartChat()
	chat.History = geminiHistory(turns[:len(turns)-1])

	resp, err := chat.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", p.classify(ctx, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", failure(nil, "empty completion", true)
	}
	if resp.UsageMetadata != nil {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "gemini completion",
			slog.String("model", p.model),
			slog.Int("prompt_tokens", int(resp.UsageMetadata.PromptTokenCount)),
			slog.Int("completion_tokens", int(resp.UsageMetadata.CandidatesTokenCount)),
		)
	}
	return text, nil
}

func (p *GeminiProvider) classify(ctx context.Context, err error) error {
	if f := contextFailure(err); f != nil {
		return f
	}
	if ctx.Err() != nil {
		return contextFailure(ctx.Err())
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return failure(err, "completion blocked by safety filter", false)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return failure(err, "gemini api error", retryableStatus(apiErr.Code))
	}
	return failure(err, "gemini transport error", true)
}

func configureModel(model *genai.GenerativeModel, system string, maxTokens int) {
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}} //nolint:exhaustruct // role is implied
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens)) //nolint:gosec // token limits are small
	}
}

func geminiHistory(turns []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		history = append(history, &genai.Content{
			Role:  geminiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

func geminiRole(r Role) string {
	if r == RoleModel {
		return "model"
	}
	return "user"
}
