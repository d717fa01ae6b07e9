package engine

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

// Store-level sentinels. Store implementations translate their backend's
// raw errors into these before anything crosses into the engine.
var (
	ErrNotFound      = xerrors.New("record not found")
	ErrAlreadyExists = xerrors.New("record already exists")
	// ErrNotPending is returned by SetProposalStatus when the proposal
	// already left PENDING; a terminal status is never overwritten.
	ErrNotPending = xerrors.New("proposal not pending")
)

// Kind classifies an engine error for the caller's error mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindConflict
	KindCapacity
	KindNotFound
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindCapacity:
		return "capacity"
	case KindNotFound:
		return "not found"
	case KindStore:
		return "store"
	}
	return "unknown"
}

// Error is the engine's error type. Every operation returns either nil or
// an *Error; raw store and oracle errors are wrapped as KindStore so they
// never leak to callers unclassified.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Message is the caller-safe description, without wrapped internals.
func (e *Error) Message() string { return e.msg }

func validationErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func authorizationErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuthorization, msg: fmt.Sprintf(format, args...)}
}

func conflictErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

func capacityErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCapacity, msg: fmt.Sprintf(format, args...)}
}

func notFoundErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

func storeErr(err error, msg string) *Error {
	return &Error{Kind: KindStore, msg: msg, err: err}
}

// ErrKind extracts the Kind of an engine error, or KindStore when err is
// not an *Error.
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
