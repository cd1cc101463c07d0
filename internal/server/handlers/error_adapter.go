package handlers

import (
	"net/http"

	apperrors "github.com/petrelhq/petrel/internal/errors"
)

// HTTPErrorResponder writes an error response for a handler failure.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// httpErrorResponder is the active responder. Tests and embedders swap it
// to observe or reshape handler errors.
var httpErrorResponder HTTPErrorResponder = defaultHTTPErrorResponder

func defaultHTTPErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// SetHTTPErrorResponder overrides how handler errors are written. Passing
// nil resets to the default.
func SetHTTPErrorResponder(responder HTTPErrorResponder) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
