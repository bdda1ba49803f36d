package types

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the failure taxonomy surfaced to callers and to the
// audio feedback layer. Kinds describe what went wrong, not which module
// raised it.
type ErrorKind string

const (
	ErrIntentClassificationFailed ErrorKind = "intent_classification_failed"
	ErrModuleUnavailable          ErrorKind = "module_unavailable"
	ErrPermissionDenied           ErrorKind = "permission_denied"
	ErrElementNotFound            ErrorKind = "element_not_found"
	ErrExtractionFailed           ErrorKind = "extraction_failed"
	ErrExtractionTimeout          ErrorKind = "extraction_timeout"
	ErrReasoningTimeout           ErrorKind = "reasoning_timeout"
	ErrReasoningUnavailable       ErrorKind = "reasoning_unavailable"
	ErrContentGenerationEmpty     ErrorKind = "content_generation_empty"
	ErrInvalidCoordinates         ErrorKind = "invalid_coordinates"
	ErrLockTimeout                ErrorKind = "lock_timeout"
	ErrDeferredTimeout            ErrorKind = "deferred_timeout"
	ErrDeferredCanceled           ErrorKind = "deferred_canceled"
	ErrInternal                   ErrorKind = "internal_error"
)

// recoverableByDefault marks kinds where retrying the same command later is
// reasonable. PermissionDenied and ModuleUnavailable are deliberately
// absent: retrying cannot help until the user changes system settings or
// installs the missing collaborator.
var recoverableByDefault = map[ErrorKind]bool{
	ErrIntentClassificationFailed: true,
	ErrExtractionFailed:           true,
	ErrExtractionTimeout:          true,
	ErrReasoningTimeout:           true,
	ErrReasoningUnavailable:       true,
	ErrLockTimeout:                true,
	ErrDeferredTimeout:            true,
	ErrDeferredCanceled:           true,
	ErrElementNotFound:            true,
}

// Error is the structured error carried inside HandlerResult envelopes.
// It implements error and unwraps to its cause so errors.Is/As keep working
// across the handler boundary.
type Error struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
	Hint        string // optional remediation hint spoken to the user
	cause       error
}

// NewError builds a typed error with the kind's default recoverability.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: recoverableByDefault[kind],
	}
}

// WrapError builds a typed error around an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	e := NewError(kind, format, args...)
	e.cause = cause
	return e
}

// WithHint attaches a remediation hint and returns the same error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// KindOf extracts the ErrorKind from any error chain; unknown errors map
// to ErrInternal and a nil error maps to "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ErrInternal
}

// AsError coerces any error into a typed *Error, wrapping unknown errors
// as ErrInternal so no raw error crosses the handler boundary.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return WrapError(ErrInternal, err, "unexpected failure")
}
