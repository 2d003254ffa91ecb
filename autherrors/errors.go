// Package autherrors defines the error taxonomy shared by the session
// controller, the API client, and the backend handlers. Errors are tagged
// with a Kind at the boundary where they occur; call sites match on the
// kind instead of inspecting message shapes.
package autherrors

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNetworkUnavailable Kind = "network_unavailable"
	KindUnauthenticated    Kind = "unauthenticated"
	KindValidationFailed   Kind = "validation_failed"
	KindInternal           Kind = "internal"
)

// Wire codes used in GraphQL error extensions. The backend emits these and
// the client maps them back to kinds.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeBadUserInput       = "BAD_USER_INPUT"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

// Error is a tagged authentication error. Message is human-readable and
// safe to show in a UI; Err carries the underlying cause, if any.
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

// DisplayMessage returns the user-facing message for the error.
func (e *Error) DisplayMessage() string { return e.Message }

// New creates a tagged error with a display message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying error while keeping it in the chain.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err carries no tag.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err is tagged with the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsUnauthenticated reports whether err signals a stale or invalid session.
// This is the only kind that triggers an automatic state transition in the
// session controller.
func IsUnauthenticated(err error) bool {
	return IsKind(err, KindUnauthenticated)
}

// DisplayMessage extracts a user-facing message from any error. Tagged
// errors use their own message; everything else falls back to Error().
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.DisplayMessage()
	}
	return err.Error()
}

// KindForCode maps a GraphQL extension code to an error kind.
func KindForCode(code string) Kind {
	switch code {
	case CodeUnauthenticated:
		return KindUnauthenticated
	case CodeInvalidCredentials:
		return KindInvalidCredentials
	case CodeBadUserInput:
		return KindValidationFailed
	default:
		return KindInternal
	}
}

// CodeForKind maps an error kind to the GraphQL extension code the backend
// puts on the wire.
func CodeForKind(kind Kind) string {
	switch kind {
	case KindUnauthenticated:
		return CodeUnauthenticated
	case KindInvalidCredentials:
		return CodeInvalidCredentials
	case KindValidationFailed:
		return CodeBadUserInput
	default:
		return CodeInternal
	}
}
