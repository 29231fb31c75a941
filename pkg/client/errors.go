package client

import (
	"fmt"
)

// FetchError is returned when the proxy endpoint cannot be reached or
// answers with a non-2xx status. A fallback is not a FetchError.
type FetchError struct {
	Path string

	// StatusCode is the proxy's status, or 0 when no response was received.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s failed: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("fetch %s failed with status %d", e.Path, e.StatusCode)
}

// Unwrap returns the underlying error for error chain support.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a non-fallback body does not decode into
// the requested type.
type DecodeError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
