// Package logging builds the process-wide structured logger.
//
// The logger wraps log/slog and adds:
//   - JSON or text output
//   - A level that can be changed at runtime (config reloads)
//   - Redaction of sensitive attributes (passwords, Authorization headers,
//     revalidation secrets)
//   - The request ID from the context on every *Context logging call
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	slog.SetDefault(logger.Logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "upstream accepted", "status", 200) // includes request_id
package logging
