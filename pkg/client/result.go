package client

import (
	"context"
	"encoding/json"
)

// Result is the outcome of a fetch.
type Result[T any] struct {
	Data T

	// Fallback is set when the proxy answered with the fallback envelope
	// and no cached response could stand in. Data is the zero value, or
	// an empty slice for FetchList.
	Fallback bool

	// Stale is set when Data comes from an expired cache entry because
	// the refetch fell back.
	Stale bool
}

// Fetch calls the proxy for path and decodes the body into T.
// opts may be nil.
func Fetch[T any](ctx context.Context, c *Client, path string, opts *Options) (Result[T], error) {
	var res Result[T]

	raw, err := c.fetch(ctx, path, opts)
	if err != nil {
		return res, err
	}

	res.Stale = raw.stale
	if raw.fallback {
		res.Fallback = true
		return res, nil
	}

	if err := json.Unmarshal(raw.body, &res.Data); err != nil {
		return Result[T]{}, &DecodeError{Path: path, Err: err}
	}
	return res, nil
}

// FetchList is Fetch for collection endpoints. On fallback Data is a
// non-nil empty slice so callers can range over it unconditionally.
func FetchList[E any](ctx context.Context, c *Client, path string, opts *Options) (Result[[]E], error) {
	res, err := Fetch[[]E](ctx, c, path, opts)
	if err != nil {
		return res, err
	}
	if res.Data == nil {
		res.Data = []E{}
	}
	return res, nil
}
