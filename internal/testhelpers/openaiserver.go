package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// OpenAIServer is a fake OpenAI chat completions endpoint.
type OpenAIServer struct {
	*httptest.Server
	calls atomic.Int64
}

// NewOpenAIServer starts a fake server that is closed when the test ends. It answers like ScriptedProvider and
// responds with HTTP 503 when the newest message contains FailMarker. Point clients at BaseURL.
func NewOpenAIServer(t *testing.T) *OpenAIServer {
	t.Helper()
	s := &OpenAIServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.chatCompletions)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the value for OPENAI_BASE_URL.
func (s *OpenAIServer) BaseURL() string {
	return s.URL + "/v1"
}

// Calls returns the number of chat completion requests served.
func (s *OpenAIServer) Calls() int {
	return int(s.calls.Load())
}

func (s *OpenAIServer) chatCompletions(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "malformed request")
		return
	}
	last := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(last, FailMarker) {
		writeOpenAIError(w, http.StatusServiceUnavailable, "server_error", "scripted failure")
		return
	}
	resp := openai.ChatCompletionResponse{ //nolint:exhaustruct // only what the client reads
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{{ //nolint:exhaustruct // only what the client reads
			Index: 0,
			Message: openai.ChatCompletionMessage{ //nolint:exhaustruct // only what the client reads
				Role:    openai.ChatMessageRoleAssistant,
				Content: Reply(len(req.Messages), last),
			},
			FinishReason: openai.FinishReasonStop,
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeOpenAIError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": kind},
	})
}
