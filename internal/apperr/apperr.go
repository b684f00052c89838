// Package apperr classifies failures into the kinds callers of the ledger act on.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	BadInput           Kind = "BadInput"
	NotFound           Kind = "NotFound"
	InsufficientFunds  Kind = "InsufficientFunds"
	Conflict           Kind = "Conflict"
	DuplicateOperation Kind = "DuplicateOperation"
	Internal           Kind = "Internal"
)

// Retriable reports whether a caller may retry the same request unchanged.
func (k Kind) Retriable() bool {
	return k == Internal
}

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(NotFound, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrBadInput           = &Error{Kind: BadInput}
	ErrNotFound           = &Error{Kind: NotFound}
	ErrInsufficientFunds  = &Error{Kind: InsufficientFunds}
	ErrConflict           = &Error{Kind: Conflict}
	ErrDuplicateOperation = &Error{Kind: DuplicateOperation}
	ErrInternal           = &Error{Kind: Internal}
)

// KindOf returns the kind of the first classified error in the chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	return err.Error()
}
