/*
PURPOSE:
  Provides the structured logger for foodallergens.
  Wraps slog for consistent output across CLI, server and runner.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.
  - Raw model output and per-call metrics are visible in the log.

  Implementation-discovered:
  - The server wants JSON lines; interactive use wants text.
  - --verbose enables debug level.

ARCHITECTURE INTEGRATION:
  - Used everywhere.
  - Configured once by internal/cli before any command runs.

ERROR HANDLING:
  - Unknown formats fall back to text.

IMPLEMENTATION RULES:
  - Use `log/slog`.
  - Logs go to stderr so stdout stays clean for classify/query output.

USAGE:
  output.Configure(os.Stderr, "json", true)
  output.Logger.Info("message", "key", "value")

RELATED FILES:
  - internal/cli/root.go
*/

package output

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log formats accepted by Configure.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var Logger *slog.Logger

func init() {
	Logger = NewLogger(os.Stderr, FormatText, false)
}

// NewLogger builds a logger writing format to w.
func NewLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Configure replaces the package logger.
func Configure(w io.Writer, format string, verbose bool) {
	SetLogger(NewLogger(w, format, verbose))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}
