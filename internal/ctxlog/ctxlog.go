// Package ctxlog carries a *slog.Logger through context.Context so that
// per-pipeline loggers reach executor and node code without threading an
// explicit logger parameter through every call site.
package ctxlog

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With returns a new context carrying the provided logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From extracts the logger from a context. Contexts constructed outside the
// application wiring (tests, ad-hoc tools) fall back to slog.Default.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
