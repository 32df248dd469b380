package errors

import (
	"errors"
	"fmt"
)

// Common error types for the underwriter client
var (
	// Authentication errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrRegistrationFailed    = errors.New("registration failed")
	ErrAuthenticationExpired = errors.New("authentication failed")
	ErrNotAuthenticated      = errors.New("not authenticated")

	// Token errors
	ErrMissingToken        = errors.New("missing token")
	ErrMissingRefreshToken = errors.New("missing refresh token")

	// OAuth handshake errors
	ErrPopupBlocked = errors.New("popup blocked")
	ErrPopupClosed  = errors.New("popup closed")
	ErrOAuthFailed  = errors.New("oauth authentication failed")

	// Deal errors
	ErrIncompleteDraft = errors.New("deal draft incomplete")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrRequestFailed   = errors.New("request failed")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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
