// Package upstream fetches content from the WordPress JSON API on behalf of
// the proxy endpoint.
//
// Every call goes through a fixed schedule: up to four attempts, the first
// immediately and the rest after 150ms, 400ms and 800ms, each bounded by its
// own timeout. The outcome of an attempt decides what happens next:
//
//	status outside {403, 429, 500, 502, 503, 504}  accept, return body and status
//	retryable status                               next attempt
//	transport error                                next attempt
//	attempt timed out                              stop, fallback
//	no attempts left                               fallback
//
// A fallback is not an error. The Response carries the envelope
// {"items":[],"error":"fallback"} with Fallback set, and Cause holds a
// *TimeoutError or *ExhaustedError for logging.
//
// Requests are authenticated with HTTP Basic only when both username and
// password are configured. GET requests may be served by a caching
// transport installed with WithTransport; every other method is sent with
// Cache-Control: no-store.
package upstream
