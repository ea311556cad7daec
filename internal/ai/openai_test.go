package ai_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := testhelpers.NewOpenAIServer(t)
	p := ai.NewOpenAIProvider(ai.OpenAIConfig{APIKey: "test", BaseURL: srv.BaseURL()}, testhelpers.NewLogger(io.Discard))
	ctx := context.Background()

	msgs := []ai.Message{
		{Role: ai.RoleInstruction, Content: "You are the game master."},
		{Role: ai.RolePlayer, Content: "Look around."},
	}
	got, err := p.Complete(ctx, ai.Request{Messages: msgs, MaxTokens: 100})
	require.NoError(t, err)
	require.Equal(t, testhelpers.Reply(2, "Look around."), got)

	_, err = p.Complete(ctx, ai.Request{Messages: []ai.Message{{Role: ai.RolePlayer, Content: "boom " + testhelpers.FailMarker}}})
	require.Error(t, err)
	f, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)
	require.True(t, f.Retryable, "503 should be retryable")
	require.Equal(t, 2, srv.Calls())
}

func TestOpenAIProvider_ClientErrorsAreNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	p := ai.NewOpenAIProvider(ai.OpenAIConfig{APIKey: "wrong", BaseURL: srv.URL + "/v1"}, testhelpers.NewLogger(io.Discard))
	_, err := p.Complete(context.Background(), ai.Request{Messages: []ai.Message{{Role: ai.RolePlayer, Content: "hi"}}})
	f, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)
	require.False(t, f.Retryable)
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	p := ai.NewOpenAIProvider(ai.OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"}, testhelpers.NewLogger(io.Discard))
	_, err := p.Complete(context.Background(), ai.Request{Messages: []ai.Message{{Role: ai.RolePlayer, Content: "hi"}}})
	_, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)
}

func TestWithTimeout(t *testing.T) {
	slow := &testhelpers.ScriptedProvider{Gate: make(chan struct{})}
	p := ai.WithTimeout(slow, 20*time.Millisecond)

	_, err := p.Complete(context.Background(), ai.Request{Messages: []ai.Message{{Role: ai.RolePlayer, Content: "hi"}}})
	f, ok := ai.AsGenerationFailure(err)
	require.True(t, ok)
	require.True(t, f.Retryable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fast := &testhelpers.ScriptedProvider{}
	require.Same(t, fast, ai.WithTimeout(fast, 0))
}
