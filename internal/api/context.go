package api

import (
	"context"
	"log/slog"
)

// loggerContextKey is the context key for the request-scoped logger.
type loggerContextKey struct{}

// WithLogger returns a new context with the logger attached.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// LoggerFromContext extracts the request logger from the context.
// Returns slog.Default() if not present or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || l == nil {
		return slog.Default()
	}
	return l
}
