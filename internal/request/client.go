// Package request is the authenticated request layer: every API call
// goes through Client, which unwraps the response envelope and recovers
// from expired access tokens via a shared Coordinator.
package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/notify"
	"github.com/alexjbarnes/tmc-client/internal/transport"
)

// Sender performs one raw HTTP call. *transport.Transport implements it.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// TokenStore is the session state the request layer reads and writes.
// *tokenstore.Store implements it.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string) error
	UserInfo() *models.UserInfo
	SetUserInfo(info models.UserInfo) error
	ClearAll() error
}

// Config configures New.
type Config struct {
	Transport   Sender
	Tokens      TokenStore
	Coordinator *Coordinator
	// Notifier shows business failure messages. Optional.
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Client issues authenticated API calls. It is safe for concurrent use.
type Client struct {
	transport   Sender
	tokens      TokenStore
	coordinator *Coordinator
	notifier    notify.Notifier
	logger      *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		transport:   cfg.Transport,
		tokens:      cfg.Tokens,
		coordinator: cfg.Coordinator,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
	}
}

// Get issues a GET with params as the query string.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	return c.Do(ctx, transport.Request{Method: http.MethodGet, Path: path, Query: params})
}

// Post issues a POST with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, transport.Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, transport.Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE with body encoded as JSON. A nil body sends
// no payload.
func (c *Client) Delete(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, transport.Request{Method: http.MethodDelete, Path: path, Body: body})
}

// Do issues req and returns the envelope's data payload.
//
// Errors are one of: *BusinessError (success=false, message already
// shown), an error wrapping ErrAuthExpired, a *transport.Error, or an
// error wrapping ErrUnexpectedResponse. A 401 is never returned as
// such: the request is replayed once with a refreshed token.
func (c *Client) Do(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	return c.do(ctx, req, false)
}

func (c *Client) do(ctx context.Context, req transport.Request, retried bool) (json.RawMessage, error) {
	if req.Token == "" && !req.Anonymous {
		req.Token = c.tokens.AccessToken()
	}

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return c.replay(ctx, req, retried)
	}

	data, err := parseEnvelope(resp.Body)
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) {
			c.notifier.Notify(be.Envelope.Message)
		}

		return nil, err
	}

	return data, nil
}

// replay handles a 401: wait for a refresh and replay req once with
// the new token. A second 401 ends the session.
func (c *Client) replay(ctx context.Context, req transport.Request, retried bool) (json.RawMessage, error) {
	if req.Anonymous {
		return nil, &transport.Error{Kind: transport.KindHTTP, Method: req.Method, Path: req.Path, Status: http.StatusUnauthorized}
	}

	if retried {
		c.logger.Warn("request unauthorized after token refresh",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
		)

		return nil, c.coordinator.Expire(fmt.Errorf("%s %s unauthorized after refresh", req.Method, req.Path))
	}

	token, err := c.coordinator.Await(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("replaying request", slog.String("method", req.Method), slog.String("path", req.Path))

	req.Token = token

	return c.do(ctx, req, true)
}

// Refresh forces a token refresh outside the 401 path, joining any
// refresh already in flight.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.coordinator.Await(ctx, "")
	return err
}

// Tokens returns the session store the client reads from.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}
