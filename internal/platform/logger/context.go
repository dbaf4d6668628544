package logger

import (
	"context"
	"log/slog"
)

// loggerContextKey is an unexported type to prevent collisions with context
// keys defined in other packages.
type loggerContextKey struct{}

// WithLogger returns a copy of the context carrying the given logger.
// Components that process a request or job attach a logger enriched with
// identifiers (task_id, user_id) so downstream layers log with full context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// FromContext returns the logger stored in the context, or the default
// slog logger when none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
