package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the category every *ValidationError unwraps to.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when the email is already registered,
	// including when a concurrent registration wins the insert.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot tell which accounts exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountInactive is returned for deactivated accounts, only after
	// the password has been verified.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrInvalidRefreshToken is any refresh-token failure other than expiry.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken means the client must log in again.
	ErrExpiredRefreshToken = errors.New("refresh token expired, please log in again")
	// ErrUserNotFound is returned by profile and admin operations.
	ErrUserNotFound = errors.New("user not found")
	// ErrStorage wraps database failures, including timeouts.  Its message
	// is never shown to clients.
	ErrStorage = errors.New("storage failure")
)

// ValidationError describes caller-fixable input problems.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationErr(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
