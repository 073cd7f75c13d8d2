package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexjbarnes/tmc-client/internal/config"
	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/logging"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := execute(ctx, os.Args, os.Stdout, os.Stderr)

	return exitCode(err, os.Stderr)
}

// execute loads config, builds the client stack and runs one command.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeLog.Close()

	logger.Debug("tmc-client starting",
		slog.String("version", Version),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store", cfg.Store),
	)

	a, err := newApp(ctx, cfg, logger, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx, args)
}

func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return logging.New(cfg.Environment, stderr), io.NopCloser(nil), nil
	}

	return logging.NewFileLogger(cfg.Environment, logging.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
}

// exitCode maps a command error to the process exit status. Server
// rejections and session expiry were already shown to the user by the
// notifier, so only other failures are printed here.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}

	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "usage: %v\n", usage)
		return 2
	}

	var business *request.BusinessError
	if errors.As(err, &business) || errors.Is(err, apperrors.ErrAuthExpired) {
		return 1
	}

	fmt.Fprintf(stderr, "error: %v\n", err)

	return 1
}
