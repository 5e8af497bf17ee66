// Package copalog provides the structured logger used by the Copa
// controller and its host. It wraps go.uber.org/zap the same way the
// rest of this codebase's ancestry does: a package-level development
// logger by default, overridable by the embedding host, falling back to
// a no-op logger rather than ever panicking on a logging failure.
package copalog

import "go.uber.org/zap"

// New returns a development logger, or a no-op logger if one could not
// be constructed (mirrors the original's Option<slog::Logger>: logging
// is never load-bearing for correctness).
func New() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewProduction returns a production (JSON, sampled) logger for use
// outside interactive development, falling back to a no-op logger.
func NewProduction() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
