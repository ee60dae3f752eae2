package logging

import (
	"log/slog"
	"os"
)

// Init configures the default slog logger. Level precedence matches the
// rest of the config layer (CLI flag > env var > default): verbose
// outranks LOG_LEVEL, which outranks the error-only default suited to a
// long-running receive command nobody is watching the terminal of.
func Init(verbose bool) {
	level := slog.LevelError

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if verbose {
		level = slog.LevelInfo
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}
