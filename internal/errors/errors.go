package errors

import (
	"errors"
	"fmt"
)

// Common error types for the NeoPing client
var (
	// Storage errors
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// Authentication errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthRejected       = errors.New("credentials rejected")
	ErrSessionExpired     = errors.New("session expired")

	// Refresh errors
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrMalformedResponse = errors.New("malformed response")
	ErrRefreshRejected   = errors.New("refresh rejected")

	// Transport errors
	ErrNetwork        = errors.New("network error")
	ErrServerRejected = errors.New("server rejected request")
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
