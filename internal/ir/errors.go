package ir

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes domain errors. Every failing engine operation
// reports exactly one kind.
type ErrorKind string

const (
	KindInsufficientPermissions  ErrorKind = "InsufficientPermissions"
	KindNonexistentCourse        ErrorKind = "NonexistentCourse"
	KindCourseCapacityFull       ErrorKind = "CourseCapacityFull"
	KindAlreadyRegistered        ErrorKind = "AlreadyRegistered"
	KindNoRegistrations          ErrorKind = "NoRegistrations"
	KindCourseAlreadyStarted     ErrorKind = "CourseAlreadyStarted"
	KindNoSwappableRegistrations ErrorKind = "NoSwappableRegistrations"
	KindNoProposedSwap           ErrorKind = "NoProposedSwap"

	// KindInvariantViolation marks a failed defensive assertion: state that
	// a correctly operated engine can never produce.
	KindInvariantViolation ErrorKind = "InvariantViolation"
)

// Kinds lists every error kind in declaration order.
var Kinds = []ErrorKind{
	KindInsufficientPermissions,
	KindNonexistentCourse,
	KindCourseCapacityFull,
	KindAlreadyRegistered,
	KindNoRegistrations,
	KindCourseAlreadyStarted,
	KindNoSwappableRegistrations,
	KindNoProposedSwap,
	KindInvariantViolation,
}

// Error is a domain error raised by the catalog, ledger, directory or engine.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Op is the operation that failed (e.g. "accept_counter_offer").
	Op string

	// Message is an optional human-readable detail.
	Message string
}

// Sentinels for errors.Is. Matching compares Kind only.
var (
	ErrInsufficientPermissions  = &Error{Kind: KindInsufficientPermissions}
	ErrNonexistentCourse        = &Error{Kind: KindNonexistentCourse}
	ErrCourseCapacityFull       = &Error{Kind: KindCourseCapacityFull}
	ErrAlreadyRegistered        = &Error{Kind: KindAlreadyRegistered}
	ErrNoRegistrations          = &Error{Kind: KindNoRegistrations}
	ErrCourseAlreadyStarted     = &Error{Kind: KindCourseAlreadyStarted}
	ErrNoSwappableRegistrations = &Error{Kind: KindNoSwappableRegistrations}
	ErrNoProposedSwap           = &Error{Kind: KindNoProposedSwap}
	ErrInvariantViolation       = &Error{Kind: KindInvariantViolation}
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s (op=%s)", e.Kind, e.Message, e.Op)
	case e.Op != "":
		return fmt.Sprintf("%s (op=%s)", e.Kind, e.Op)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError creates an Error of the given kind for op.
func NewError(kind ErrorKind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Invariantf reports a failed defensive assertion.
func Invariantf(op, format string, args ...any) *Error {
	return Errorf(KindInvariantViolation, op, format, args...)
}

// KindOf extracts the ErrorKind from err.
// Uses errors.As to handle wrapped errors. Returns "" for non-domain errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDomainError reports whether err carries an ErrorKind.
func IsDomainError(err error) bool {
	return KindOf(err) != ""
}
