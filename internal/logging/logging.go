// Package logging sets up the application logger. The TUI owns the
// terminal, so log output goes to a file under the config directory.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger writing to the given file. The
// returned closer flushes and releases the file; callers defer it in main.
// When the file cannot be opened, logging is disabled rather than fatal.
func Setup(path string, level slog.Level) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		slog.SetDefault(discardLogger())
		return nopCloser{}, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		slog.SetDefault(discardLogger())
		return nopCloser{}, err
	}

	handler := tint.NewHandler(f, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    true, // file output
	})
	slog.SetDefault(slog.New(handler))
	return f, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
