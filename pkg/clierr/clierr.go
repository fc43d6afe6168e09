package clierr

import (
	"errors"

	"github.com/habedi/reauth/auth"
)

// Type categorizes a CLI-facing error for consistent messaging & exit codes.
type Type string

const (
	Validation Type = "validation"
	SignIn     Type = "sign_in"
	Transport  Type = "transport"
	Internal   Type = "internal"
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// FromRequest classifies an error returned by an authenticated request.
func FromRequest(msg string, err error) *Error {
	if errors.Is(err, auth.ErrSignInRequired) {
		return New(SignIn, "sign-in required; run 'reauth login'", err)
	}
	return New(Transport, msg, err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *Error
	if !errors.As(err, &ce) {
		return 1
	}
	switch ce.Type {
	case Validation:
		return 2
	case SignIn:
		return 3
	case Transport:
		return 4
	default:
		return 1
	}
}
