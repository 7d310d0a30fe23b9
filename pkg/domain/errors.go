package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrPaymentRequired   = errors.New("insufficient token balance")
	ErrImageNotSupported = errors.New("image generation is not supported by this provider")
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotAuthenticated ErrorKind = "not_authenticated"
	KindRateLimit        ErrorKind = "rate_limit"
	KindVendorAuth       ErrorKind = "auth_to_vendor"
	KindTimeout          ErrorKind = "timeout"
	KindContentPolicy    ErrorKind = "content_policy"
	KindUnknown          ErrorKind = "unknown"
)

// Error carries a message that is safe to show to end users next to the internal cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewValidationError(format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindValidation, Message: msg, Err: ErrInvalidInput}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) UserMessage() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
