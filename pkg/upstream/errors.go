package upstream

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingPath is returned when a request has no logical path.
var ErrMissingPath = errors.New("missing path")

// StatusError records a retryable status returned by an attempt.
type StatusError struct {
	StatusCode int
	Attempt    int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("attempt %d: upstream returned retryable status %d", e.Attempt, e.StatusCode)
}

// TimeoutError is the cause of a fallback triggered by an attempt that
// exceeded its deadline. Timeouts are not retried.
type TimeoutError struct {
	Path    string
	Attempt int
	Timeout time.Duration
	Cause   error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out on attempt %d after %s", e.Path, e.Attempt, e.Timeout)
}

// Unwrap returns the underlying error for error chain support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ExhaustedError is the cause of a fallback after every attempt returned
// a retryable status or a transport error.
type ExhaustedError struct {
	Path     string
	Attempts int

	// LastErr is the error of the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("upstream %s failed after %d attempts: %v", e.Path, e.Attempts, e.LastErr)
}

// Unwrap returns the underlying error for error chain support.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// InvalidBodyError is the cause of a fallback when the accepted body is
// not JSON.
type InvalidBodyError struct {
	Path       string
	StatusCode int
	Size       int
}

// Error implements the error interface.
func (e *InvalidBodyError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d with a non-JSON body (%d bytes)", e.Path, e.StatusCode, e.Size)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
