package gateway

import (
	"fmt"
	"net/http"
)

// ValidationError reports input rejected locally, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// RemoteError is a non-success HTTP status from the backend, carrying the
// status code and raw body. 401/403 and 429 surface as the AuthError and
// RateLimitError subtypes; use errors.As to distinguish them.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// AuthError is a RemoteError for 401/403 responses.
type AuthError struct {
	RemoteError
}

// Unwrap exposes the underlying RemoteError so errors.As matches either type.
func (e *AuthError) Unwrap() error {
	return &e.RemoteError
}

// RateLimitError is a RemoteError for 429 responses.
type RateLimitError struct {
	RemoteError
}

func (e *RateLimitError) Unwrap() error {
	return &e.RemoteError
}

// MalformedResponseError is a success status whose body is missing required
// fields.
type MalformedResponseError struct {
	Operation string
	Reason    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Operation, e.Reason)
}

// NetworkError means the call could not complete at the transport level.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// remoteError wraps a non-success status in the appropriate taxonomy type.
func remoteError(status int, body string) error {
	base := RemoteError{Status: status, Body: body}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{RemoteError: base}
	case http.StatusTooManyRequests:
		return &RateLimitError{RemoteError: base}
	default:
		return &base
	}
}
