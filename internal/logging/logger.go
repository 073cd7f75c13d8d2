package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// Logs go to stderr so command output on stdout stays machine-readable.
func NewLogger(env string) *slog.Logger {
	return New(env, os.Stderr)
}

// New is NewLogger writing to w.
func New(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// FileConfig configures NewFileLogger.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// NewFileLogger logs to a size-rotated file instead of stderr. Close
// the returned closer on exit to flush the file.
func NewFileLogger(env string, cfg FileConfig) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, nil, err
	}

	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	return New(env, w), w, nil
}
