package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotApproved        = errors.New("account pending approval")

	// Session errors
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoTokens        = errors.New("no tokens")

	// Request / response errors
	ErrValidation        = errors.New("validation failed")
	ErrServer            = errors.New("server error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRequest           = errors.New("request rejected")

	// Storage errors
	ErrKeyNotFound = errors.New("key not found")

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

// Join combines errors, mirroring errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
