// Package logger builds the slog loggers used across rev-ai.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LogFile is where output "file" writes to.
const LogFile = "rev-ai.log"

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Writer resolves the configured output. The returned closer is a no-op for
// the standard streams.
func Writer(cfg Config) (io.Writer, func()) {
	switch cfg.Output {
	case "stdout":
		return os.Stdout, func() {}
	case "file":
		file, err := os.OpenFile(LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			return os.Stderr, func() {}
		}
		return file, func() { _ = file.Close() }
	default:
		return os.Stderr, func() {}
	}
}

// NewLogger initializes a new slog logger based on the provided configuration.
// A nil output falls back to the writer selected by cfg.Output.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output, _ = Writer(cfg)
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		*level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

// ForTask scopes a logger to one review task.
func ForTask(logger *slog.Logger, taskID string) *slog.Logger {
	return logger.With("task_id", taskID)
}
