// Package middleware provides the serve surface's shared HTTP middleware:
// request ids, panic recovery, and the standard error envelope.
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/petrelhq/petrel/internal/errors"
	"github.com/petrelhq/petrel/internal/observability"
)

// ErrorResponse mirrors the standard envelope for decoding in tests.
type ErrorResponse = apperrors.HTTPErrorResponse

type requestIDKey struct{}

// RequestID attaches a request id to the context: the inbound X-Request-ID
// header when present, otherwise a fresh UUID. The id is echoed on the
// response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id attached by RequestID, or the
// inbound header when the middleware did not run.
func RequestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// Recovery converts handler panics into INTERNAL_ERROR envelopes instead
// of tearing down the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			observability.CLILogger.Error("Recovered from handler panic",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", RequestIDFrom(r)))
			apperrors.WriteError(w, apperrors.CodeInternalError,
				fmt.Sprintf("panic: %v", rec), RequestIDFrom(r), nil)
		}()
		next.ServeHTTP(w, r)
	})
}
