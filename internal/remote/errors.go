package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-success reply from the remote store
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: remote returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// Permanent reports whether retrying the same request cannot succeed:
// the server rejected the payload, the credentials or the write itself.
func (e *APIError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusConflict,
		http.StatusRequestEntityTooLarge,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// ErrNotConfigured is returned when a backend is selected without the settings it needs
var ErrNotConfigured = errors.New("remote backend is not configured")
