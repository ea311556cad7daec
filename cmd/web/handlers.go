package main

import (
	"net/http"

	"github.com/justinas/nosurf"
)

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type gameTurnRequest struct {
	SessionID string `json:"sessionId"`
	Input     string `json:"input"`
	Location  string `json:"location"`
}

type interrogateRequest struct {
	SessionID   string `json:"sessionId"`
	SuspectName string `json:"suspectName"`
	Input       string `json:"input"`
}

type accuseRequest struct {
	SessionID   string `json:"sessionId"`
	SuspectName string `json:"suspectName"`
}

type newSessionResponse struct {
	SessionID string `json:"sessionId"`
	CSRFToken string `json:"csrfToken"`
}

type responseOnly struct {
	Response string `json:"response"`
}

func (app *application) newSession(w http.ResponseWriter, r *http.Request) {
	id := app.game.NewSession(r.Context())
	app.own(r.Context(), id)
	app.writeJSON(w, r, http.StatusOK, newSessionResponse{SessionID: id, CSRFToken: nosurf.Token(r)})
}

func (app *application) startGame(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	r, ok := app.ownedGame(w, r, req.SessionID)
	if !ok {
		return
	}
	reply, err := app.game.StartGame(r.Context(), req.SessionID)
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, reply)
}

func (app *application) gameTurn(w http.ResponseWriter, r *http.Request) {
	var req gameTurnRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	r, ok := app.ownedGame(w, r, req.SessionID)
	if !ok {
		return
	}
	reply, err := app.game.GameTurn(r.Context(), req.SessionID, req.Input, req.Location)
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, reply)
}

func (app *application) interrogate(w http.ResponseWriter, r *http.Request) {
	var req interrogateRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	r, ok := app.ownedGame(w, r, req.SessionID)
	if !ok {
		return
	}
	response, err := app.game.Interrogate(r.Context(), req.SessionID, req.SuspectName, req.Input)
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, responseOnly{Response: response})
}

func (app *application) accuse(w http.ResponseWriter, r *http.Request) {
	var req accuseRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	r, ok := app.ownedGame(w, r, req.SessionID)
	if !ok {
		return
	}
	verdict, err := app.game.Accuse(r.Context(), req.SessionID, req.SuspectName)
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, verdict)
}

func (app *application) resetSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	r, ok := app.ownedGame(w, r, req.SessionID)
	if !ok {
		return
	}
	id, err := app.game.Reset(r.Context(), req.SessionID)
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.disown(r.Context(), req.SessionID)
	app.own(r.Context(), id)
	app.writeJSON(w, r, http.StatusOK, sessionRequest{SessionID: id})
}

func (app *application) roster(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.game.Roster())
}
