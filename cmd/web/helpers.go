package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/myrjola/whodunit/internal/ai"
	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/game"
)

const (
	codeSessionNotFound  = "session_not_found"
	codeInvalidInput     = "invalid_input"
	codeGenerationFailed = "generation_failed"
	codeBusy             = "busy"
	codeGameOver         = "game_over"
	codeCSRFInvalid      = "csrf_invalid"
	codeNotFound         = "not_found"
	codeInternal         = "internal_error"
)

const maxRequestBytes = 64 << 10

// errorResponse is the body of every failed API request.
type errorResponse struct {
	Response string `json:"response"`
	Code     string `json:"code"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (app *application) writeError(w http.ResponseWriter, _ *http.Request, status int, code, msg string) {
	payload, _ := json.Marshal(errorResponse{Response: msg, Code: code})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// readJSON decodes a size-limited request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError, codeInternal, "Something went wrong. Please try again.")
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), slog.String("code", code))
	app.writeError(w, r, status, code, msg)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, codeNotFound, "Not found.")
}

func (app *application) sessionNotFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound, codeSessionNotFound, "Session not found.")
}

func (app *application) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, "invalid input", errors.SlogError(err))
	app.clientError(w, r, http.StatusBadRequest, codeInvalidInput, "That does not make sense here. Try something else.")
}

// gameError maps a game service error onto the API error contract. Provider details stay in the server log.
func (app *application) gameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		app.sessionNotFound(w, r)
	case errors.Is(err, game.ErrInvalidInput):
		app.badRequest(w, r, err)
	case errors.Is(err, game.ErrGameOver):
		app.clientError(w, r, http.StatusConflict, codeGameOver, "The case is closed. Start a new session to play again.")
	case errors.Is(err, game.ErrBusy):
		w.Header().Set("Retry-After", "1")
		app.clientError(w, r, http.StatusServiceUnavailable, codeBusy,
			"The previous turn is still being written. Try again shortly.")
	default:
		if f, ok := ai.AsGenerationFailure(err); ok {
			app.logger.LogAttrs(r.Context(), slog.LevelError, "generation failed",
				slog.Bool("retryable", f.Retryable), errors.SlogError(err))
			app.writeError(w, r, http.StatusInternalServerError, codeGenerationFailed,
				"The storyteller is lost for words. Please try again.")
			return
		}
		app.serverError(w, r, err)
	}
}
