package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string {
	return "i/o timeout"
}

func (timeoutError) Timeout() bool {
	return true
}

func (timeoutError) Temporary() bool {
	return true
}

var _ net.Error = timeoutError{}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid call RetryWithBackoff succeeding on the first attempt", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, nil, func() error {
			calls++
			return nil
		}, IsTransient, 3, time.Millisecond, 0)
		assert.NoError(t, err, "Expected RetryWithBackoff to not return an error")
		assert.Equal(t, 1, calls, "Expected a single call")
	})

	t.Run("Valid call RetryWithBackoff retries transient errors until success", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(ctx, nil, func() error {
			calls++
			if calls < 3 {
				return ErrTransient
			}
			return nil
		}, IsTransient, 5, time.Millisecond, 0)
		assert.NoError(t, err, "Expected RetryWithBackoff to not return an error")
		assert.Equal(t, 3, calls, "Expected two retries")
	})

	t.Run("Valid call RetryWithBackoff caps the backoff", func(t *testing.T) {
		start := time.Now()
		_ = RetryWithBackoff(ctx, nil, func() error {
			return ErrTransient
		}, IsTransient, 4, 10*time.Millisecond, 10*time.Millisecond)
		assert.Less(t, time.Since(start), 200*time.Millisecond, "Expected capped waits between attempts")
	})

	t.Run("Valid call RetryWithBackoff logs retries through the given logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "batcher")
		calls := 0
		err := RetryWithBackoff(ctx, logger, func() error {
			calls++
			if calls < 2 {
				return ErrTransient
			}
			return nil
		}, IsTransient, 3, time.Millisecond, 0)
		assert.NoError(t, err, "Expected RetryWithBackoff to not return an error")
		assert.Contains(t, buf.String(), "Operation failed, will retry", "Expected the retry to be logged")
		assert.Contains(t, buf.String(), "component=batcher", "Expected the component attribute")
		assert.Contains(t, buf.String(), "Operation succeeded after retry", "Expected the recovery to be logged")
	})

	t.Run("Invalid call RetryWithBackoff with a permanent error", func(t *testing.T) {
		permanent := errors.New("permanent")
		calls := 0
		err := RetryWithBackoff(ctx, nil, func() error {
			calls++
			return permanent
		}, IsTransient, 5, time.Millisecond, 0)
		assert.ErrorIs(t, err, permanent, "Expected the permanent error")
		assert.Equal(t, 1, calls, "Expected no retry")
	})

	t.Run("Invalid call RetryWithBackoff with zero max attempts", func(t *testing.T) {
		err := RetryWithBackoff(ctx, nil, func() error { return nil }, nil, 0, time.Millisecond, 0)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts, "Expected invalid max attempts error")
	})

	t.Run("Invalid call RetryWithBackoff with cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		calls := 0
		err := RetryWithBackoff(cancelled, nil, func() error {
			calls++
			cancel()
			return ErrTransient
		}, IsTransient, 5, time.Second, 0)
		assert.ErrorIs(t, err, context.Canceled, "Expected cancellation error")
		assert.Equal(t, 1, calls, "Expected no retry after cancellation")
	})
}

func TestIsTransient(t *testing.T) {
	tests := map[string]struct {
		err       error
		transient bool
	}{
		"nil":          {err: nil, transient: false},
		"sentinel":     {err: ErrTransient, transient: true},
		"deadline":     {err: context.DeadlineExceeded, transient: true},
		"net timeout":  {err: timeoutError{}, transient: true},
		"bad gateway":  {err: &StatusError{StatusCode: 502, Err: errors.New("bad gateway")}, transient: true},
		"rate limited": {err: &StatusError{StatusCode: 429, Err: errors.New("slow down")}, transient: true},
		"unauthorized": {err: &StatusError{StatusCode: 401, Err: errors.New("unauthorized")}, transient: false},
		"plain error":  {err: errors.New("boom"), transient: false},
		"cancellation": {err: context.Canceled, transient: false},
	}

	for name, tc := range tests {
		t.Run("Valid call IsTransient for "+name, func(t *testing.T) {
			assert.Equal(t, tc.transient, IsTransient(tc.err), "Expected transient classification")
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Run("Valid call classifyStatus extracts the status code", func(t *testing.T) {
		err := classifyStatus(errors.New("API returned unexpected status code: 503: overloaded"))
		var statusErr *StatusError
		assert.ErrorAs(t, err, &statusErr, "Expected a StatusError")
		assert.Equal(t, 503, statusErr.StatusCode, "Expected the parsed status code")
		assert.True(t, IsTransient(err), "Expected 503 to be transient")
	})

	t.Run("Valid call classifyStatus keeps errors without status", func(t *testing.T) {
		plain := errors.New("connection refused")
		assert.Equal(t, plain, classifyStatus(plain), "Expected the error unchanged")
	})
}
