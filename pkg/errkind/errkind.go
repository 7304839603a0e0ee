// Package errkind classifies errors so callers branch on kind instead of
// matching message text. Kinds survive wrapping.
package errkind

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unknown         Kind = "unknown"
	NotFound        Kind = "not_found"
	InvalidArgument Kind = "invalid_argument"
	InvalidState    Kind = "invalid_state"
	Conflict        Kind = "conflict"
	Unauthorized    Kind = "unauthorized"
)

type kindError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *kindError) Unwrap() error { return e.cause }

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. A nil err returns nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, msg: msg, cause: err}
}

// Is reports whether err or any error it wraps carries the kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the outermost classified kind in err's chain, or Unknown.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}
