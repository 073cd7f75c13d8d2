package request

//go:generate mockgen -source=coordinator.go -destination=mocks_test.go -package=request

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
)

// DefaultRefreshTimeout bounds one refresh cycle, including the
// best-effort profile fetch.
const DefaultRefreshTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
}

// ProfileFetcher loads the current user's profile with an explicit token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*models.UserInfo, error)
}

// Redirector sends the user back to login.
type Redirector interface {
	RedirectToLogin()
}

type phase int

const (
	phaseIdle phase = iota
	phaseRefreshing
)

func (p phase) String() string {
	if p == phaseRefreshing {
		return "refreshing"
	}

	return "idle"
}

// outcome settles one queued request: either a token to replay with or
// the error to fail with.
type outcome struct {
	token string
	err   error
}

type continuation func(outcome)

// CoordinatorConfig configures NewCoordinator. Profiles and Redirector
// are optional.
type CoordinatorConfig struct {
	Tokens     TokenStore
	Refresher  Refresher
	Profiles   ProfileFetcher
	Redirector Redirector
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Coordinator funnels every 401 into at most one refresh call at a time.
//
// Requests that hit a 401 queue a continuation. The first one to find
// the coordinator idle starts the refresh; the rest only wait. When the
// refresh settles, every continuation is resumed in arrival order with
// either the new access token or an auth-expired error, and the
// coordinator goes back to idle.
type Coordinator struct {
	tokens     TokenStore
	refresher  Refresher
	profiles   ProfileFetcher
	redirector Redirector
	timeout    time.Duration
	logger     *slog.Logger

	mu    sync.Mutex
	phase phase
	queue []continuation
}

// NewCoordinator creates an idle Coordinator. Build one per process and
// share it between every Client.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRefreshTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Coordinator{
		tokens:     cfg.Tokens,
		refresher:  cfg.Refresher,
		profiles:   cfg.Profiles,
		redirector: cfg.Redirector,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// Await blocks until the current (or a newly started) refresh settles
// and returns the token to replay with. staleToken is the access token
// the failed request carried; pass "" to force a refresh.
//
// If ctx ends first, Await returns ctx.Err(). The refresh itself keeps
// running for everyone else.
func (c *Coordinator) Await(ctx context.Context, staleToken string) (string, error) {
	ch := make(chan outcome, 1)

	if token, ok := c.enqueue(staleToken, func(o outcome) { ch <- o }); ok {
		return token, nil
	}

	select {
	case o := <-ch:
		return o.token, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Refreshing reports whether a refresh call is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase == phaseRefreshing
}

// enqueue queues cont and starts a refresh if none is running.
//
// While idle, a request that carried a token other than the stored one
// lost a race with a refresh that has already finished. It gets the
// stored token straight back (ok == true) and nothing is queued.
func (c *Coordinator) enqueue(staleToken string, cont continuation) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == phaseIdle && staleToken != "" {
		if current := c.tokens.AccessToken(); current != "" && current != staleToken {
			return current, true
		}
	}

	c.queue = append(c.queue, cont)

	if c.phase == phaseIdle {
		c.phase = phaseRefreshing
		go c.run()
	}

	return "", false
}

// run performs one refresh cycle. It uses its own context so a caller
// giving up cannot abort a refresh other requests are waiting on.
func (c *Coordinator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	token, err := c.refresh(ctx)
	c.settle(token, err)
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", apperrors.ErrNoRefreshToken
	}

	c.logger.Info("access token expired, refreshing")

	resp, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("calling refresh endpoint: %w", err)
	}

	if resp == nil || resp.Token == "" || resp.RefreshToken == "" {
		return "", fmt.Errorf("%w: response is missing tokens", apperrors.ErrRefreshRejected)
	}

	if err := c.tokens.SetTokens(resp.Token, resp.RefreshToken); err != nil {
		return "", fmt.Errorf("storing refreshed tokens: %w", err)
	}

	c.updateUserInfo(ctx, resp)

	c.logger.Info("access token refreshed")

	return resp.Token, nil
}

// updateUserInfo rebuilds the cached user snapshot. The profile fetch
// is best effort: the refresh has already succeeded at this point.
func (c *Coordinator) updateUserInfo(ctx context.Context, resp *models.AuthResponse) {
	info := resp.UserInfo(c.tokens.UserInfo())

	if c.profiles != nil {
		profile, err := c.profiles.FetchProfile(ctx, resp.Token)
		if err != nil {
			c.logger.Warn("fetching profile after refresh failed", slog.String("error", err.Error()))
		} else if profile != nil {
			info = info.Merge(*profile)
		}
	}

	if err := c.tokens.SetUserInfo(info); err != nil {
		c.logger.Warn("caching user info failed", slog.String("error", err.Error()))
	}
}

// settle resolves every queued continuation in FIFO order and returns
// the coordinator to idle. On failure the session is torn down before
// the queue is drained, so nothing can observe a half-cleared store.
func (c *Coordinator) settle(token string, err error) {
	if err != nil {
		c.logger.Warn("token refresh failed", slog.String("error", err.Error()))
		err = c.expire(err)
	}

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.phase = phaseIdle
	c.mu.Unlock()

	c.logger.Debug("refresh settled",
		slog.Int("waiters", len(queue)),
		slog.Bool("ok", err == nil),
	)

	o := outcome{token: token, err: err}
	for _, cont := range queue {
		cont(o)
	}
}

// Expire ends the session without a refresh cycle, e.g. when a request
// that was already replayed gets a second 401. It clears the store,
// triggers the login redirect and returns an error wrapping
// ErrAuthExpired and cause.
func (c *Coordinator) Expire(cause error) error {
	return c.expire(cause)
}

func (c *Coordinator) expire(cause error) error {
	if err := c.tokens.ClearAll(); err != nil {
		c.logger.Warn("clearing session failed", slog.String("error", err.Error()))
	}

	if c.redirector != nil {
		c.redirector.RedirectToLogin()
	}

	if cause == nil {
		return apperrors.ErrAuthExpired
	}

	return fmt.Errorf("%w: %w", apperrors.ErrAuthExpired, cause)
}
