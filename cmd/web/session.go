package main

import (
	"context"
	"net/http"
	"slices"

	"github.com/myrjola/whodunit/internal/game"
	"github.com/myrjola/whodunit/internal/logging"
)

type sessionKey string

// ownedGamesKey lists the game ids created through the browser session, oldest first.
const ownedGamesKey = sessionKey("ownedGames")

const maxOwnedGames = 16

func (app *application) ownedGames(ctx context.Context) []string {
	ids, _ := app.sessionManager.Get(ctx, string(ownedGamesKey)).([]string)
	return ids
}

func (app *application) own(ctx context.Context, id string) {
	ids := append(slices.Clone(app.ownedGames(ctx)), id)
	if len(ids) > maxOwnedGames {
		ids = ids[len(ids)-maxOwnedGames:]
	}
	app.sessionManager.Put(ctx, string(ownedGamesKey), ids)
}

func (app *application) disown(ctx context.Context, id string) {
	ids := slices.DeleteFunc(slices.Clone(app.ownedGames(ctx)), func(owned string) bool { return owned == id })
	app.sessionManager.Put(ctx, string(ownedGamesKey), ids)
}

// ownedGame admits requests for games the caller created. Anything else is answered like an unknown id so that ids
// reveal nothing. The returned request logs the hashed id.
func (app *application) ownedGame(w http.ResponseWriter, r *http.Request, id string) (*http.Request, bool) {
	if id == "" || !slices.Contains(app.ownedGames(r.Context()), id) {
		app.sessionNotFound(w, r)
		return nil, false
	}
	return r.WithContext(logging.WithAttrs(r.Context(), game.SessionAttr(id))), true
}
