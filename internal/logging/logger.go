// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide slog logger. Production gets JSON on
// stdout; everything else gets text with source locations for easier
// local debugging. LOG_LEVEL picks the level (debug/info/warn/error,
// default info) and LOG_FORMAT forces json or text regardless of env.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv(os.Getenv("LOG_LEVEL"))}

	if useJSON(env, os.Getenv("LOG_FORMAT")) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	opts.AddSource = true
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func useJSON(env, format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return true
	case "text":
		return false
	}
	return strings.EqualFold(strings.TrimSpace(env), "prod")
}

func levelFromEnv(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
