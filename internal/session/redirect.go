// Package session sends the user back to the login entry point once the
// session can no longer be recovered.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexjbarnes/tmc-client/internal/notify"
)

const (
	// DefaultDelay leaves the notification on screen long enough to read
	// before navigating away.
	DefaultDelay = 1500 * time.Millisecond

	// DefaultLoginRoute is the Mini Program login page.
	DefaultLoginRoute = "/pages/login/login"

	// LoginMessage is shown before navigating.
	LoginMessage = "please log in again"
)

// Navigator performs a hard navigation to route, replacing history so
// the user cannot go back into the dead session.
type Navigator interface {
	Navigate(route string) error
}

// NavigatorFunc adapts a plain function to Navigator.
type NavigatorFunc func(route string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(route string) error { return f(route) }

// Config configures New.
type Config struct {
	Notifier  notify.Notifier
	Navigator Navigator
	Delay     time.Duration
	Route     string
	Logger    *slog.Logger
}

// Redirector implements the login redirect. Calls arriving while a
// redirect is already scheduled are dropped, so a burst of failed
// requests produces one notification and one navigation.
type Redirector struct {
	notifier  notify.Notifier
	navigator Navigator
	delay     time.Duration
	route     string
	logger    *slog.Logger

	pending atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Redirector, filling defaults for zero config fields.
func New(cfg Config) *Redirector {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}

	if cfg.Navigator == nil {
		cfg.Navigator = NavigatorFunc(func(string) error { return nil })
	}

	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}

	if cfg.Route == "" {
		cfg.Route = DefaultLoginRoute
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Redirector{
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		delay:     cfg.Delay,
		route:     cfg.Route,
		logger:    cfg.Logger,
	}
}

// RedirectToLogin notifies the user and navigates to the login route
// after the configured delay. It never blocks.
func (r *Redirector) RedirectToLogin() {
	if !r.pending.CompareAndSwap(false, true) {
		r.logger.Debug("login redirect already pending")
		return
	}

	r.notifier.Notify(LoginMessage)

	r.wg.Add(1)
	time.AfterFunc(r.delay, func() {
		defer r.wg.Done()
		defer r.pending.Store(false)

		r.logger.Info("redirecting to login", slog.String("route", r.route))

		if err := r.navigator.Navigate(r.route); err != nil {
			r.logger.Warn("login redirect failed",
				slog.String("route", r.route),
				slog.String("error", err.Error()),
			)
		}
	})
}

// Pending reports whether a redirect is scheduled but has not run yet.
func (r *Redirector) Pending() bool {
	return r.pending.Load()
}

// Wait blocks until every scheduled navigation has run or ctx is done.
// Call it once request traffic has stopped, e.g. before process exit.
func (r *Redirector) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
