// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures and installs a global slog logger, returning it for
// callers that want to hold their own reference. Output is JSON when
// ARTRON_JSON_LOG is "1"/"true"/"json", text otherwise. Level is read
// from ARTRON_LEVEL, the same environment variable the reference
// scheduler's logging.config.dictConfig reads.
func Init(service string) *slog.Logger {
	jsonMode := strings.ToLower(os.Getenv("ARTRON_JSON_LOG"))
	asJSON := jsonMode == "1" || jsonMode == "true" || jsonMode == "json"

	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	var handler slog.Handler
	if asJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", asJSON, "level", opts.Level)
	return logger
}

// levelFromEnv maps ARTRON_LEVEL to a slog level. Unrecognized or empty
// values default to ERROR, matching the reference scheduler's
// os.environ.get('ARTRON_LEVEL', 'ERROR') fallback.
func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("ARTRON_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
