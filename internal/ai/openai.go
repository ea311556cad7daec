package ai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIProvider. BaseURL may point at any OpenAI compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	completion, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     p.model,
			MaxTokens: req.MaxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return "", p.classify(ctx, err)
	}
	if len(completion.Choices) == 0 {
		return "", failure(nil, "no completion choices returned", true)
	}
	choice := completion.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", failure(nil, "completion blocked by content filter", false)
	}
	if choice.Message.Content == "" {
		return "", failure(nil, "empty completion", true)
	}

	p.logger.LogAttrs(ctx, slog.LevelDebug, "openai completion",
		slog.String("model", completion.Model),
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens),
	)
	return choice.Message.Content, nil
}

func (p *OpenAIProvider) classify(ctx context.Context, err error) error {
	if f := contextFailure(err); f != nil {
		return f
	}
	if ctx.Err() != nil {
		return contextFailure(ctx.Err())
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return failure(err, "openai api error", retryableStatus(apiErr.HTTPStatusCode))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return failure(err, "openai request error", retryableStatus(reqErr.HTTPStatusCode))
	}
	// Transport level failures such as refused connections are usually transient.
	return failure(err, "openai transport error", true)
}

func openAIRole(r Role) string {
	switch r {
	case RoleInstruction:
		return openai.ChatMessageRoleSystem
	case RoleModel:
		return openai.ChatMessageRoleAssistant
	case RolePlayer:
		return openai.ChatMessageRoleUser
	default:
		return openai.ChatMessageRoleUser
	}
}
