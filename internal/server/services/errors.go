package services

import (
	"errors"
	"fmt"
)

// Kind names a client-visible failure class. The values double as the
// "name" field of HTTP error bodies.
type Kind string

const (
	KindEmailInUse           Kind = "EmailInUseError"
	KindPasswordTooShort     Kind = "PasswordTooShortError"
	KindPasswordTooLong      Kind = "PasswordTooLongError"
	KindPasswordTooWeak      Kind = "PasswordTooWeakError"
	KindValidation           Kind = "ValidationError"
	KindIncorrectCredentials Kind = "IncorrectCredentialsError"
	KindSamePassword         Kind = "SamePasswordError"
	KindNoPendingReset       Kind = "NoPendingResetError"
	KindUserNotFound         Kind = "UserNotFoundError"
	KindUserUpdate           Kind = "UserUpdateError"
	KindUnauthorized         Kind = "UnauthorizedError"
	KindInvalidRequest       Kind = "InvalidRequestError"
	KindInfrastructure       Kind = "InfrastructureError"
)

// Error is returned by every service operation. Message is safe to show to
// clients; Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the Kind of err. Anything that is not a *Error is an
// infrastructure failure.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInfrastructure
}

// InvalidRequest wraps a request decoding failure.
func InvalidRequest(err error) *Error {
	return newError(KindInvalidRequest, err, "malformed request body")
}
