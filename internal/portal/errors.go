package portal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetworkFailure matches transport failures and server errors.
	// Recovery is a manual retry by the user.
	ErrNetworkFailure = errors.New("network failure")

	// ErrStaleStateConflict matches rejections caused by the resource
	// having changed elsewhere (e.g. a task completed from another device).
	ErrStaleStateConflict = errors.New("stale state conflict")
)

// APIError describes a failed request. It matches ErrStaleStateConflict
// for 409/410 responses and ErrNetworkFailure for everything else.
type APIError struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	Method string
	Path   string

	// Message is the server-supplied message, if any.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is classifies the error against the portal sentinels.
func (e *APIError) Is(target error) bool {
	conflict := e.Status == http.StatusConflict || e.Status == http.StatusGone
	switch target {
	case ErrStaleStateConflict:
		return conflict
	case ErrNetworkFailure:
		return !conflict
	}
	return false
}

// AuthError indicates that the bearer credential was rejected (401).
// The client's unauthorized hook has already run when it is returned.
type AuthError struct {
	Message string

	// SignIn is set when a login request itself was refused.
	SignIn bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetworkFailure reports whether err is a transport or server failure.
func IsNetworkFailure(err error) bool {
	return errors.Is(err, ErrNetworkFailure)
}

// IsStaleState reports whether err is a stale-state conflict.
func IsStaleState(err error) bool {
	return errors.Is(err, ErrStaleStateConflict)
}

// UserMessage returns the message to show for err: the server's own
// message when it sent one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if authErr.SignIn {
			return authErr.Message
		}
		return "Your session has expired. Please log in again."
	}
	return fallback
}
