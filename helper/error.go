package helper

import (
	"errors"
	"fmt"
)

// Error wraps an error with the operation that produced it.
type Error struct {
	Trace    string
	Original error
}

// NewError wraps err with a trace describing the failed operation.
// Returns nil if err is nil.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Trace:    trace,
		Original: err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Original)
}

// Unwrap returns the wrapped error so errors.Is and errors.As keep working.
func (e *Error) Unwrap() error {
	return e.Original
}

// ErrNotFound is returned by stores when a requested entry does not exist.
var ErrNotFound = errors.New("not found")
