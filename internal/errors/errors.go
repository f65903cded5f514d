package errors

import (
	"errors"
	"fmt"
)

// Common error types for the anonymous messaging client
var (
	// API errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrServerError        = errors.New("server error")
	ErrUnreachable        = errors.New("server unreachable")
	ErrInvalidResponse    = errors.New("invalid response")

	// Token errors
	ErrTokenDecode          = errors.New("token could not be decoded")
	ErrRefreshRejected      = errors.New("refresh credential rejected")
	ErrRefreshUnreachable   = errors.New("refresh endpoint unreachable")
	ErrSessionExpired       = errors.New("session expired")
	ErrMissingAccessToken   = errors.New("response did not include an access token")
	ErrMissingCallbackToken = errors.New("no token in federated callback")

	// Session errors
	ErrIdentityFetchFailed = errors.New("identity fetch failed")
	ErrLoginRequired       = errors.New("login required")
	ErrSessionLoading      = errors.New("session is still loading")
	ErrSessionChanged      = errors.New("session changed while the token was being refreshed")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines a sentinel with the underlying cause so both match errors.Is
func Join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
