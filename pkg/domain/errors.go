package domain

import (
	"errors"
)

// Kind classifies failures so callers can pick how to surface them.
type Kind string

const (
	KindInsufficientCredits Kind = "insufficient_credits"
	KindAuthRequired        Kind = "auth_required"
	KindNetworkFailure      Kind = "network_failure"
	KindProviderFailure     Kind = "provider_failure"
	KindValidationFailure   Kind = "validation_failure"
	KindFailure             Kind = "failure"
	KindBusy                Kind = "busy"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

var (
	ErrInsufficientCredits = NewError(KindInsufficientCredits, "insufficient credits")
	ErrAuthRequired        = NewError(KindAuthRequired, "authentication required")
	ErrNetworkFailure      = NewError(KindNetworkFailure, "network failure")
	ErrProviderFailure     = NewError(KindProviderFailure, "provider failure")
	ErrValidationFailure   = NewError(KindValidationFailure, "validation failure")
	ErrFailure             = NewError(KindFailure, "request failed")
	ErrBusy                = NewError(KindBusy, "a request is already in progress")
)

// KindOf returns the Kind of err, or KindFailure for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFailure
}
