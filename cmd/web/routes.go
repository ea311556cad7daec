package main

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	// Game endpoints carry the browser session that owns the game ids and the CSRF check.
	session := alice.New(app.sessionManager.LoadAndSave, app.noSurf)

	mux.Handle("POST /api/new-session", session.ThenFunc(app.newSession))
	mux.Handle("POST /api/start-game", session.ThenFunc(app.startGame))
	mux.Handle("POST /api/game-turn", session.ThenFunc(app.gameTurn))
	mux.Handle("POST /api/interrogate", session.ThenFunc(app.interrogate))
	mux.Handle("POST /api/accuse", session.ThenFunc(app.accuse))
	mux.Handle("POST /api/reset-session", session.ThenFunc(app.resetSession))

	mux.HandleFunc("GET /api/roster", app.roster)
	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.HandleFunc("/", app.notFound)

	common := alice.New(middleware.RequestID, middleware.RealIP, app.requestContext, app.recoverPanic,
		app.logRequest, secureHeaders)
	return common.Then(app.timeoutHandler(mux))
}
