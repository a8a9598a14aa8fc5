// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g. hh_id taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAuthRequired indicates no valid access token is obtainable for the subject.
	// The user must go through the OAuth flow again.
	ErrAuthRequired = errors.New("authentication required")

	// ErrMissingState indicates a regeneration was requested without a saved draft
	// and without a fresh generation context.
	ErrMissingState = errors.New("no saved draft state, context must be collected again")
)

// AuthExchangeError is returned when the token endpoint rejects an authorization
// code or refresh token. It is never retried: the user has to restart the login.
type AuthExchangeError struct {
	Status int
	Body   string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("token exchange rejected: status %d: %s", e.Status, e.Body)
}

// AuthError is returned on 401/403 from the platform API. It signals that the
// stored tokens are no longer accepted and re-authentication is needed.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("api authentication failed: status %d", e.Status)
}

func (e *AuthError) Unwrap() error { return ErrAuthRequired }

// APIError is a non-2xx response from the platform API other than 401/403.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Body)
}

// Temporary reports whether the response may succeed on retry.
func (e *APIError) Temporary() bool { return e.Status >= 500 }

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// NormalizationError indicates a malformed or incomplete payload from the
// platform. It is a data-quality problem, never retried.
type NormalizationError struct {
	Entity string
	Field  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: required field %q is missing", e.Entity, e.Field)
}

// UserInputError indicates invalid caller-supplied input, e.g. a vacancy URL
// that does not match the platform's canonical shape.
type UserInputError struct {
	Msg string
}

func (e *UserInputError) Error() string { return e.Msg }

// Retryable reports whether err is worth another attempt on an idempotent
// operation: transport failures and 5xx responses only.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}
