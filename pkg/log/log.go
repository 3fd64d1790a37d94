// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on the default logger at the requested
// level. Unrecognized level names fall back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with a module attribute.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
