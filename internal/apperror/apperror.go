// Package apperror defines the error taxonomy shared by the store, session,
// remote gateway, and HTTP layer. Handlers map these to status codes with
// errors.Is; everything else just wraps and propagates.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrDuplicateIdentity      = errors.New("duplicate identity")
	ErrDuplicateLinkedAccount = errors.New("duplicate linked account")
	ErrNoActiveIdentity       = errors.New("no active identity")
	ErrRemoteRejected         = errors.New("remote rejected")
	ErrRemoteUnavailable      = errors.New("remote unavailable")
)

type AppError struct {
	Err     error  // sentinel, exposed via Unwrap
	Message string // human-readable, shown to the user
	Field   string // optional: form field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, name string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, name),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func DuplicateIdentity(name string) *AppError {
	return &AppError{
		Err:     ErrDuplicateIdentity,
		Message: fmt.Sprintf("identity %q is already registered", name),
		Field:   "name",
	}
}

func DuplicateLinkedAccount(account string) *AppError {
	return &AppError{
		Err:     ErrDuplicateLinkedAccount,
		Message: fmt.Sprintf("linked account %q is already bound to another identity", account),
		Field:   "linked_account",
	}
}

func NoActiveIdentity() *AppError {
	return &AppError{
		Err:     ErrNoActiveIdentity,
		Message: "no identity selected; activate one first",
	}
}

// RemoteRejected means the platform understood the request and declined it.
// The message comes from the platform's error envelope and is safe to show.
func RemoteRejected(message string) *AppError {
	if message == "" {
		message = "the platform rejected the request"
	}
	return &AppError{
		Err:     ErrRemoteRejected,
		Message: message,
	}
}

// RemoteUnavailable means the platform could not be reached at all:
// network failure, timeout, or a 5xx response.
func RemoteUnavailable(cause error) *AppError {
	msg := "the platform is unreachable, try again later"
	if cause != nil {
		msg = fmt.Sprintf("the platform is unreachable: %v", cause)
	}
	return &AppError{
		Err:     ErrRemoteUnavailable,
		Message: msg,
	}
}
