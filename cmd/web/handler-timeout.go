package main

import (
	"net/http"
	"time"
)

const timeoutBody = `{"response":"The storyteller took too long. Please try again.","code":"timeout"}`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the request timeout.
func (app *application) timeoutHandler(h http.Handler) http.Handler {
	// We want the timeout to be a little shorter than the server's write timeout so that the
	// timeout handler has a chance to respond before the server closes the connection.
	httpHandlerTimeout := app.requestTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	if httpHandlerTimeout <= 0 {
		httpHandlerTimeout = app.requestTimeout
	}
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
