// Package common defines shared constants and sentinel errors used across
// the account service and its tooling. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Account errors.
	ErrEmailInUse           = errors.New("email already in use")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrPasswordTooLong      = errors.New("password too long")
	ErrPasswordTooWeak      = errors.New("password too weak")
	ErrIncorrectCredentials = errors.New("incorrect email or password")
	ErrSamePassword         = errors.New("new password must be different")
	ErrNoPendingReset       = errors.New("no pending password reset")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserUpdate           = errors.New("unable to update user info")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
