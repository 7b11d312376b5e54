package merger

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSequence means the stream violated the chunk ordering
	// protocol; the specific violated rule is carried as context.
	ErrMalformedSequence = errors.New("malformed chunk sequence")

	// ErrIncompleteRow means the stream ended while a row was still open.
	ErrIncompleteRow = errors.New("stream ended with an uncommitted row")

	// ErrExternalDestroy is passed to Destroy by an owner tearing the
	// merger down before the stream finished.
	ErrExternalDestroy = errors.New("merger destroyed by caller")
)

// Error wraps a sentinel error with additional context
type Error struct {
	err     error  // The underlying sentinel error
	context string // Additional error context
}

// Error satisfies the error interface
func (e *Error) Error() string {
	if e.context == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err.Error(), e.context)
}

// Unwrap implements the errors.Unwrap interface for compatibility with errors.Is/As
func (e *Error) Unwrap() error {
	return e.err
}

// newError creates a new merger error with context
func newError(err error, format string, args ...interface{}) *Error {
	return &Error{
		err:     err,
		context: fmt.Sprintf(format, args...),
	}
}
