// Package errors defines the HTTP error envelope shared by the serve
// surface. Every non-2xx response carries the same JSON shape so clients
// and operators parse one format.
package errors

import (
	"encoding/json"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
)

// HTTPError is the envelope payload.
type HTTPError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HTTPErrorResponse is the top-level error body.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// statusForCode maps error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the standard envelope with the status implied by code.
func WriteError(w http.ResponseWriter, code, message, requestID string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(code))
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
			Details:   details,
		},
	})
}

// RespondWithError writes an INTERNAL_ERROR envelope for an unclassified
// error.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	requestID := ""
	if r != nil {
		requestID = r.Header.Get("X-Request-ID")
	}
	WriteError(w, CodeInternalError, msg, requestID, nil)
}
