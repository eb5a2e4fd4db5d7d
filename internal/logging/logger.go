// Package logging decouples the application from a concrete log backend.
// The server wires log/slog in through SlogLogger; tests typically pass a
// logger built on a discarding handler.
package logging

import "context"

// Logger is the structured logging contract used throughout the server.
// Variadic args alternate keys and values, in the log/slog style:
//
//	log.Error(ctx, "presigned PUT failed", "error", err)
type Logger interface {
	// Debug records diagnostic detail, off by default in production handlers.
	Debug(ctx context.Context, msg string, args ...any)

	// Info records normal operation events.
	Info(ctx context.Context, msg string, args ...any)

	// Warn records conditions worth attention that did not fail the operation.
	Warn(ctx context.Context, msg string, args ...any)

	// Error records operation failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger attaching the given key-value pairs to every
	// record. Services use it to scope a logger per module.
	With(args ...any) Logger
}
