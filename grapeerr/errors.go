// Package grapeerr defines the closed set of error kinds the engine
// surfaces to the coordinator. Every component in this repository
// returns a *grapeerr.Error on a failure path rather than a bare error
// or a panic, so that the dispatcher can always report a Kind.
package grapeerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds recognized by the
// dispatcher and surfaced to the coordinator.
type Kind string

// Error kinds.
const (
	NotFound             Kind = "NotFound"
	DuplicateId          Kind = "DuplicateId"
	TypeMismatch         Kind = "TypeMismatch"
	InvalidValue         Kind = "InvalidValue"
	MissingKey           Kind = "MissingKey"
	UnsupportedOperation Kind = "UnsupportedOperation"
	InvalidOperation     Kind = "InvalidOperation"
	IllegalState         Kind = "IllegalState"
	DataType             Kind = "DataType"
	LibraryLoad          Kind = "LibraryLoad"
	StoreError           Kind = "StoreError"
	CommError            Kind = "CommError"
	Unimplemented        Kind = "Unimplemented"
)

// Error is the error type every package in this repository returns on
// a failure path. It carries a closed Kind plus a human message and an
// optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause so errors.Is/As work across the
// store/comm boundary.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
