// Package errs adapts the teacher's src/pkg/errors into SyncKit's error
// taxonomy (§7): every fallible core operation either returns an error
// satisfying Categorized, or is silently degraded and logged — the core
// never panics across the wire boundary (a vector clock counter at
// saturation makes Tick refuse and report failure rather than wrap).
package errs

import (
	"errors"
	"fmt"
)

// Category classifies an error for both logging and for choosing how
// the coordinator responds on the wire.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNetwork    Category = "network"
	CategoryRetryable  Category = "retryable"
	CategoryPermanent  Category = "permanent"
	CategoryInternal   Category = "internal"
)

// ErrorKind is the machine-readable string carried on an ERROR frame
// (§6, §7), distinct from Category: Category drives internal handling,
// ErrorKind is the wire-stable identifier clients branch on.
type ErrorKind string

const (
	KindProtocol      ErrorKind = "protocol_error"
	KindAuthorization ErrorKind = "authorization_error"
	KindCausal        ErrorKind = "causal_error"
	KindOverflow      ErrorKind = "overflow_error"
	KindInternal      ErrorKind = "internal_error"
)

// Categorized is implemented by every SyncKit error type.
type Categorized interface {
	error
	Category() Category
	Kind() ErrorKind
}

// CoreError is the concrete Categorized implementation used throughout
// the coordinator, wire codec, and storage adapters.
type CoreError struct {
	category Category
	kind     ErrorKind
	reason   string
	cause    error
}

// New builds a CoreError with a human-readable reason.
func New(category Category, kind ErrorKind, reason string) *CoreError {
	return &CoreError{category: category, kind: kind, reason: reason}
}

// Wrap attaches category/kind to an existing error, preserving it for
// errors.Is/As.
func Wrap(category Category, kind ErrorKind, cause error) *CoreError {
	return &CoreError{category: category, kind: kind, reason: cause.Error(), cause: cause}
}

// Wrapf is Wrap with a formatted reason prefix.
func Wrapf(category Category, kind ErrorKind, cause error, format string, args ...interface{}) *CoreError {
	return &CoreError{category: category, kind: kind, reason: fmt.Sprintf(format, args...), cause: cause}
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.reason, e.cause)
	}
	return e.reason
}

func (e *CoreError) Unwrap() error { return e.cause }

func (e *CoreError) Category() Category { return e.category }

func (e *CoreError) Kind() ErrorKind { return e.kind }

// Is reports whether err (or any error it wraps) is a Categorized error
// of the given kind.
func Is(err error, kind ErrorKind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.kind == kind
	}
	return false
}

// As is a thin re-export of errors.As for callers already importing
// this package, keeping the Is/As/Wrap/Wrapf surface together.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Convenience constructors for §7's taxonomy.

func Protocol(reason string) *CoreError {
	return New(CategoryValidation, KindProtocol, reason)
}

func Authorization(reason string) *CoreError {
	return New(CategoryPermanent, KindAuthorization, reason)
}

func Causal(reason string) *CoreError {
	return New(CategoryRetryable, KindCausal, reason)
}

func Overflow(reason string) *CoreError {
	return New(CategoryInternal, KindOverflow, reason)
}

func Internal(reason string) *CoreError {
	return New(CategoryInternal, KindInternal, reason)
}
