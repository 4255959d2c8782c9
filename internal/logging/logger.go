// Package logging is the structured logger shared by the blog client's API
// adapter, stores and REPL. Logs go to stderr so they never interleave with
// REPL output on stdout.
//
// New picks the backend named in config: "slog" (log/slog text handler) or
// "zerolog". Stores built without a logger use Discard.
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Warn(ctx, "Failed to update post", "post_id", id, "error", err)
//
// Keys used across the client: "store", "component", "post_id",
// "comment_id", "method", "path", "status", "request_id", "error".
type Logger interface {
	// Debug is for per-request detail: timings, request ids.
	Debug(ctx context.Context, msg string, args ...any)
	// Info records state changes such as login, logout and writes.
	Info(ctx context.Context, msg string, args ...any)
	// Warn records failed operations the user is told about.
	Warn(ctx context.Context, msg string, args ...any)
	// Error records failures the user cannot act on, such as a broken
	// state database.
	Error(ctx context.Context, msg string, args ...any)

	// With binds pairs to every later entry, e.g. With("store", "posts").
	With(args ...any) Logger
}
