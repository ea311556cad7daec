package main

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/myrjola/whodunit/internal/e2etest"
	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/mystery"
	"github.com/myrjola/whodunit/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type apiError struct {
	Response string `json:"response"`
	Code     string `json:"code"`
}

func startServer(t *testing.T) (*e2etest.Server, *testhelpers.OpenAIServer) {
	t.Helper()
	openAI := testhelpers.NewOpenAIServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, map[string]string{
		"WHODUNIT_ADDR":       "localhost:0",
		"WHODUNIT_SQLITE_URL": ":memory:",
		"OPENAI_API_KEY":      "sk-test",
		"OPENAI_BASE_URL":     openAI.BaseURL(),
	}, run)
	require.NoError(t, err)
	return server, openAI
}

func requireAPIError(t *testing.T, resp *e2etest.Response, status int, code string) apiError {
	t.Helper()
	require.Equal(t, status, resp.StatusCode, string(resp.Body))
	var body apiError
	require.NoError(t, resp.Decode(&body))
	require.Equal(t, code, body.Code)
	require.NotEmpty(t, body.Response)
	return body
}

func TestGame(t *testing.T) {
	server, openAI := startServer(t)
	client := server.Client()
	ctx := context.Background()

	id, err := client.NewSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	t.Run("start game", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/start-game", map[string]string{"sessionId": id})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		var reply game.Reply
		require.NoError(t, resp.Decode(&reply))
		require.Equal(t, testhelpers.Reply(2, mystery.OpeningNarrative), reply.Response)
		require.Equal(t, mystery.LivingRoom, reply.Location)
	})

	t.Run("game turn moves the player", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/game-turn", map[string]string{
			"sessionId": id,
			"input":     "I look around.",
			"location":  "kitchen",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		var reply game.Reply
		require.NoError(t, resp.Decode(&reply))
		require.Equal(t, testhelpers.Reply(4, "I look around."), reply.Response)
		require.Equal(t, mystery.Kitchen, reply.Location)
	})

	t.Run("interrogate", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/interrogate", map[string]string{
			"sessionId":   id,
			"suspectName": "kabir",
			"input":       "Where were you?",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		var body struct {
			Response string `json:"response"`
		}
		require.NoError(t, resp.Decode(&body))
		require.Equal(t, testhelpers.Reply(2, "Where were you?"), body.Response)
	})

	t.Run("unknown suspect", func(t *testing.T) {
		calls := openAI.Calls()
		resp, err := client.PostJSON(ctx, "/api/interrogate", map[string]string{
			"sessionId":   id,
			"suspectName": "Sherlock",
			"input":       "Hello?",
		})
		require.NoError(t, err)
		requireAPIError(t, resp, http.StatusBadRequest, "invalid_input")
		require.Equal(t, calls, openAI.Calls())
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/game-turn", "not an object")
		require.NoError(t, err)
		requireAPIError(t, resp, http.StatusBadRequest, "invalid_input")
	})

	t.Run("generation failure keeps the transcript", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/game-turn", map[string]string{
			"sessionId": id,
			"input":     "Open the drawer " + testhelpers.FailMarker,
		})
		require.NoError(t, err)
		body := requireAPIError(t, resp, http.StatusInternalServerError, "generation_failed")
		require.NotContains(t, body.Response, "scripted failure")

		resp, err = client.PostJSON(ctx, "/api/game-turn", map[string]string{
			"sessionId": id,
			"input":     "Open the drawer gently",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		var reply game.Reply
		require.NoError(t, resp.Decode(&reply))
		require.Equal(t, testhelpers.Reply(6, "Open the drawer gently"), reply.Response)
		require.Equal(t, mystery.Kitchen, reply.Location)
	})

	t.Run("missing csrf token", func(t *testing.T) {
		anonymous, err := e2etest.NewClient(server.URL())
		require.NoError(t, err)
		resp, err := anonymous.PostJSON(ctx, "/api/start-game", map[string]string{"sessionId": id})
		require.NoError(t, err)
		requireAPIError(t, resp, http.StatusForbidden, "csrf_invalid")
	})

	t.Run("other players cannot use the session", func(t *testing.T) {
		other, err := e2etest.NewClient(server.URL())
		require.NoError(t, err)
		_, err = other.NewSession(ctx)
		require.NoError(t, err)
		resp, err := other.PostJSON(ctx, "/api/start-game", map[string]string{"sessionId": id})
		require.NoError(t, err)
		requireAPIError(t, resp, http.StatusNotFound, "session_not_found")
	})

	t.Run("unknown session", func(t *testing.T) {
		resp, err := client.PostJSON(ctx, "/api/game-turn", map[string]string{
			"sessionId": "00000000-0000-0000-0000-000000000000",
			"input":     "Hello?",
		})
		require.NoError(t, err)
		requireAPIError(t, resp, http.StatusNotFound, "session_not_found")
	})
}

func TestAccuseAndReset(t *testing.T) {
	server, _ := startServer(t)
	client := server.Client()
	ctx := context.Background()

	id, err := client.NewSession(ctx)
	require.NoError(t, err)

	resp, err := client.PostJSON(ctx, "/api/accuse", map[string]string{"sessionId": id, "suspectName": "Meera"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	var verdict game.Verdict
	require.NoError(t, resp.Decode(&verdict))
	require.Equal(t, mystery.Meera, verdict.Accused)
	require.Equal(t, verdict.Killer == mystery.Meera, verdict.Correct)
	require.Contains(t, mystery.Weapons, verdict.Weapon)
	require.Contains(t, mystery.Motives, verdict.Motive)

	resp, err = client.PostJSON(ctx, "/api/game-turn", map[string]string{"sessionId": id, "input": "One more look."})
	require.NoError(t, err)
	requireAPIError(t, resp, http.StatusConflict, "game_over")

	resp, err = client.PostJSON(ctx, "/api/reset-session", map[string]string{"sessionId": id})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	var reset struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, resp.Decode(&reset))
	require.NotEqual(t, id, reset.SessionID)

	resp, err = client.PostJSON(ctx, "/api/start-game", map[string]string{"sessionId": id})
	require.NoError(t, err)
	requireAPIError(t, resp, http.StatusNotFound, "session_not_found")

	resp, err = client.PostJSON(ctx, "/api/start-game", map[string]string{"sessionId": reset.SessionID})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
}

func TestRoster(t *testing.T) {
	server, _ := startServer(t)
	resp, err := server.Client().Get(context.Background(), "/api/roster")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var roster game.Roster
	require.NoError(t, resp.Decode(&roster))
	require.Equal(t, mystery.Victim, roster.Victim)
	require.Len(t, roster.Suspects, len(mystery.Suspects))
	require.Len(t, roster.Rooms, len(mystery.Rooms))
	require.Equal(t, mystery.LivingRoom, roster.Rooms[0].Slug)
}

func TestNotFound(t *testing.T) {
	server, _ := startServer(t)
	resp, err := server.Client().Get(context.Background(), "/api/does-not-exist")
	require.NoError(t, err)
	requireAPIError(t, resp, http.StatusNotFound, "not_found")
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), testhelpers.NewLogger(io.Discard), map[string]string{
		"WHODUNIT_PROVIDER": "gemini",
	})
	require.Error(t, err)
}
