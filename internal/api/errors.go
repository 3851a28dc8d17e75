// ABOUTME: Error types returned by the REST client
// ABOUTME: Carries the server's human-readable message for notifications

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx body does not have the
// expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// Error is a non-2xx response from the backend.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Message    string // from the {"message": "..."} body, may be empty
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// ServerMessage returns the backend's message carried by err, if any.
func ServerMessage(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// MessageOr returns the backend's message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	if msg, ok := ServerMessage(err); ok {
		return msg
	}
	return fallback
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// errorMessage extracts "message" (or "error") from an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return strings.TrimSpace(payload.Message)
	}
	return strings.TrimSpace(payload.Error)
}
