package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates the dashboard logger: JSON to the log file always,
// text to stderr only in verbose mode (stderr output would corrupt the
// interactive display otherwise). Returns the logger and a cleanup
// function to close the file.
func SetupLogger(logFile string, level slog.Level, verbose bool) (*slog.Logger, func() error) {
	var handlers []slog.Handler

	if verbose {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{
				Level: level,
			}))
			logger := slog.New(slogmulti.Fanout(handlers...))
			return logger, file.Close
		}
		slog.Error("failed to open log file", "error", err, "file", logFile)
	}

	if len(handlers) == 0 {
		// Nothing to log to; discard rather than write into the TUI.
		handlers = append(handlers, slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), func() error { return nil }
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
