// Package logctx carries a zerolog logger through context.Context so that
// run-scoped fields (run_id, backend) and document-scoped fields (file,
// volume_id) reach every log line emitted below the call that added them.
//
// Usage:
//
//	ctx, runID := logctx.WithRun(ctx)
//	ctx = logctx.WithStr(ctx, "file", name)
//	log := logctx.FromContext(ctx)
//	log.Info().Msg("loaded")
package logctx

import (
	"context"

	"github.com/eunmann/tokenbench/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// loggerKey is the private key type for storing loggers in context.
type loggerKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context. If the context is nil
// or does not contain a logger, the process logger from pkg/logging is
// returned.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return *logging.L()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return *logging.L()
}

// WithStr returns a new context with a logger that has the specified string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithRun assigns a fresh run identifier and adds it to the context logger
// as run_id.
func WithRun(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithStr(ctx, "run_id", id), id
}
