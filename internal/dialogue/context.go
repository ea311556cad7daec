package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/myrjola/whodunit/internal/dialogue"

var (
	// ErrEmptyInput is returned for blank player text. The provider is not contacted.
	ErrEmptyInput = errors.NewSentinel("empty player input")
	// ErrBusy is returned when the caller gave up waiting for an exchange already in flight on the same context.
	ErrBusy = errors.NewSentinel("dialogue busy")
)

// Context is one ongoing exchange with a provider. At most one exchange runs at a time; later callers wait their
// turn.
type Context struct {
	// lock is a one slot semaphore so that waiting can be abandoned when the caller's context ends.
	lock       chan struct{}
	tokenLimit int

	mu         sync.Mutex
	transcript Transcript
}

func New(systemPrompt string, tokenLimit int) *Context {
	return &Context{
		lock:       make(chan struct{}, 1),
		tokenLimit: tokenLimit,
		transcript: NewTranscript(systemPrompt),
	}
}

// Transcript returns a snapshot of the conversation so far.
func (c *Context) Transcript() Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Hooks run while an exchange holds the context, so they are ordered with every other exchange on it.
type Hooks struct {
	// Before runs before the provider is called. An error aborts the exchange.
	Before func() error
	// Commit runs after the provider succeeded and before the turns are appended. An error discards the reply.
	Commit func() error
}

// Send submits playerText and returns the generated reply.
//
// The player turn and the model turn are appended together once the provider succeeds. When the provider fails
// the transcript is left as it was, so the same text can be resubmitted. Provider errors are returned as
// *ai.GenerationFailure.
func (c *Context) Send(ctx context.Context, provider ai.Provider, playerText string) (string, error) {
	return c.Exchange(ctx, provider, playerText, Hooks{})
}

// Exchange is Send with hooks. Hook errors are returned unchanged.
func (c *Context) Exchange(ctx context.Context, provider ai.Provider, playerText string, hooks Hooks) (string, error) {
	if strings.TrimSpace(playerText) == "" {
		return "", ErrEmptyInput
	}

	select {
	case c.lock <- struct{}{}:
	case <-ctx.Done():
		return "", errors.Wrap(errors.Join(ErrBusy, ctx.Err()), "wait for dialogue")
	}
	defer func() { <-c.lock }()

	if hooks.Before != nil {
		if err := hooks.Before(); err != nil {
			return "", err
		}
	}

	transcript := c.Transcript()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dialogue.send",
		trace.WithAttributes(
			attribute.Int("dialogue.turns", transcript.Len()),
			attribute.Int("dialogue.token_limit", c.tokenLimit),
		),
	)
	defer span.End()

	reply, err := provider.Complete(ctx, BuildRequest(transcript, playerText, c.tokenLimit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		if _, ok := ai.AsGenerationFailure(err); !ok {
			err = &ai.GenerationFailure{Retryable: false, Message: "provider error", Err: err}
		}
		return "", errors.Wrap(err, "send to provider", slog.Int("turns", transcript.Len()))
	}
	span.SetAttributes(attribute.Int("dialogue.reply_length", len(reply)))
	if hooks.Commit != nil {
		if err = hooks.Commit(); err != nil {
			span.SetStatus(codes.Error, "reply discarded")
			return "", err
		}
	}

	c.mu.Lock()
	c.transcript = c.transcript.Append(
		ai.Message{Role: ai.RolePlayer, Content: playerText},
		ai.Message{Role: ai.RoleModel, Content: reply},
	)
	c.mu.Unlock()
	return reply, nil
}
