// ABOUTME: Error types and sentinels for Garmin Connect calls.
// ABOUTME: APIError unwraps to ErrAuthentication or ErrTooManyRequests by status.
package garmin

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is returned when a call is made before tokens exist.
	ErrNotAuthenticated = errors.New("garmin: not authenticated")

	// ErrAuthentication is returned when Garmin rejects credentials or tokens.
	ErrAuthentication = errors.New("garmin: authentication failed")

	// ErrMFARequired is returned when the account asks for a second factor
	// and no prompter is available.
	ErrMFARequired = errors.New("garmin: multi-factor code required")

	// ErrTooManyRequests is returned when Garmin rate limits the account.
	ErrTooManyRequests = errors.New("garmin: too many requests")

	// ErrNoTokens is returned by TokenStore.Load when the directory holds no tokens.
	ErrNoTokens = errors.New("garmin: no saved tokens")

	// ErrUnexpectedStatus is returned by writes that require one exact status.
	ErrUnexpectedStatus = errors.New("garmin: unexpected response status")
)

// APIError describes a non-2xx response from Garmin.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps well-known statuses onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthentication
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	}
	return nil
}
