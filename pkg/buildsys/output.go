package buildsys

import (
	"context"

	"github.com/rs/zerolog"
)

// log returns the logger attached with WithLogger or a disabled logger
func log(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithLogger attaches logger to ctx. Parsing and running tasks without a logger is silent.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}
