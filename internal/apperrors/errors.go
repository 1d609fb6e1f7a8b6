// Package apperrors defines the failure taxonomy every transition boundary
// classifies into. The kind travels with the error so transport layers can
// map it without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failed command.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
	KindBudget        Kind = "BUDGET"
	KindSlot          Kind = "SLOT"
)

// Error carries a kind alongside the message. A StateConflict tells the
// caller to refetch and retry; the rest surface as-is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a kinded error from a format string.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Validation reports whether err is a validation failure.
func Validation(format string, args ...any) error {
	return New(KindValidation, format, args...)
}

// Authorization reports a caller acting outside its rights.
func Authorization(format string, args ...any) error {
	return New(KindAuthorization, format, args...)
}

// StateConflict reports a command invalid for the current state. The session
// is left untouched; the caller should refetch and retry.
func StateConflict(format string, args ...any) error {
	return New(KindStateConflict, format, args...)
}

// NotFound reports a missing session, auction, member, or player.
func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

// Budget reports a bid exceeding the bidder's budget.
func Budget(format string, args ...any) error {
	return New(KindBudget, format, args...)
}

// Slot reports a roster slot already at its limit.
func Slot(format string, args ...any) error {
	return New(KindSlot, format, args...)
}
