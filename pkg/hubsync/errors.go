package hubsync

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAccessToken is returned when a client is constructed
	// without an access token.
	ErrMissingAccessToken = errors.New("hubspot access token is required")

	// ErrSignatureMismatch is returned when webhook signature
	// verification fails.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
)

// AuthError reports a failed OAuth token refresh. It is fatal for the
// in-progress operation but not for the process; callers should surface it
// and allow a retry after re-authorization.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("hubspot auth error (status %d): %s", e.StatusCode, e.Message)
	}
	return "hubspot auth error: " + e.Message
}

// APIError reports a request the server rejected. 4xx statuses are never
// retried automatically; 429/5xx statuses reach the caller only after the
// transport has exhausted its retries.
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot API error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status belongs to the transient class the
// transport retries.
func (e *APIError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

// ConnectionError reports a network-level failure (DNS, TLS, timeout),
// distinct from APIError so callers can tell "the server rejected this"
// from "we couldn't reach the server".
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "hubspot connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ValidationError reports a malformed webhook payload or a value this
// package cannot interpret or default.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
