package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alexjbarnes/tmc-client/internal/backend"
	"github.com/alexjbarnes/tmc-client/internal/config"
	"github.com/alexjbarnes/tmc-client/internal/notify"
	"github.com/alexjbarnes/tmc-client/internal/request"
	"github.com/alexjbarnes/tmc-client/internal/session"
	"github.com/alexjbarnes/tmc-client/internal/state"
	"github.com/alexjbarnes/tmc-client/internal/tokenstore"
	"github.com/alexjbarnes/tmc-client/internal/transport"
)

// redirectGrace is how long the process waits past the redirect delay
// for a scheduled login redirect before exiting anyway.
const redirectGrace = time.Second

// app is the wired client stack shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
	format string

	store      *tokenstore.Store
	client     *request.Client
	services   *backend.Services
	redirector *session.Redirector
	closeStore func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) (*app, error) {
	kv, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := tokenstore.New(kv, logger)
	toast := notify.NewToast(errOut, cfg.ToastDuration)

	redirector := session.New(session.Config{
		Notifier:  toast,
		Navigator: loginHint(errOut),
		Delay:     cfg.RedirectDelay,
		Route:     cfg.LoginRoute,
		Logger:    logger,
	})

	tr := transport.New(transport.Config{
		BaseURL:     cfg.BaseURL,
		TokenHeader: cfg.TokenHeader,
		Timeout:     cfg.RequestTimeout,
		Tokens:      store,
		Logger:      logger,
	})

	coord := request.NewCoordinator(request.CoordinatorConfig{
		Tokens:     store,
		Refresher:  request.NewRefresher(tr),
		Profiles:   request.NewProfileFetcher(tr),
		Redirector: redirector,
		Timeout:    cfg.RefreshTimeout,
		Logger:     logger,
	})

	client := request.New(request.Config{
		Transport:   tr,
		Tokens:      store,
		Coordinator: coord,
		Notifier:    toast,
		Logger:      logger,
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		errOut:     errOut,
		format:     formatJSON,
		store:      store,
		client:     client,
		services:   backend.New(client, store, logger),
		redirector: redirector,
		closeStore: closeStore,
	}, nil
}

// openStore opens the session backend selected by cfg.Store.
func openStore(ctx context.Context, cfg *config.Config) (tokenstore.Backend, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return state.NewMemory(), func() error { return nil }, nil
	case config.StoreRedis:
		r, err := state.NewRedis(ctx, state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening redis store: %w", err)
		}

		return r, r.Close, nil
	default:
		path := cfg.StatePath
		if path == "" {
			p, err := state.DefaultPath()
			if err != nil {
				return nil, nil, fmt.Errorf("resolving state path: %w", err)
			}

			path = p
		}

		s, err := state.LoadAt(path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading state: %w", err)
		}

		return s, s.Close, nil
	}
}

// loginHint is the terminal stand-in for navigating to the login page.
func loginHint(w io.Writer) session.Navigator {
	return session.NavigatorFunc(func(route string) error {
		_, err := fmt.Fprintf(w, "session ended; run 'tmc-client login' to sign in again (%s)\n", route)
		return err
	})
}

// Run executes the command line in args. A login redirect scheduled
// during the command is allowed to finish before Run returns.
func (a *app) Run(ctx context.Context, args []string) error {
	err := newCommand(a).Run(ctx, args)

	if a.redirector.Pending() {
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.RedirectDelay+redirectGrace)
		defer cancel()

		if werr := a.redirector.Wait(waitCtx); werr != nil {
			a.logger.Warn("login redirect did not finish", slog.String("error", werr.Error()))
		}
	}

	return err
}

// Close releases the session backend.
func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		a.logger.Warn("closing session store", slog.String("error", err.Error()))
	}
}
