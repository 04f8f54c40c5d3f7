package pipeline

import (
	"context"
	"errors"
	"net"

	"github.com/siherrmann/docgrapher/model"
)

var (
	// ErrInvalidConfig is returned by constructors for non-positive budgets or sizes.
	ErrInvalidConfig = model.ErrInvalidConfig
	// ErrDimensionMismatch marks chunks whose vector length differs from the declared dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrTransient marks provider failures worth retrying.
	ErrTransient = errors.New("transient provider error")
	// ErrInvalidMaxAttempts is returned by RetryWithBackoff for non-positive attempt limits.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)

// StatusError is a provider failure carrying an HTTP-like status code.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: ErrTransient, deadline
// exceeded, network timeouts and status codes >= 500 or 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == 429
	}

	return false
}
