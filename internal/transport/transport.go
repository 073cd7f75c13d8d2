// Package transport issues single HTTP calls against the backend and maps
// every failure onto one error shape. It never looks inside the response
// envelope.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout applies to a call when neither the request nor the
	// transport config sets one.
	DefaultTimeout = 30 * time.Second

	// DefaultTokenHeader carries the access token.
	DefaultTokenHeader = "x-token"

	// maxResponseBytes caps response body reads. Catalog pages are the
	// largest payloads and stay well below this.
	maxResponseBytes = 8 * 1024 * 1024
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindNetwork covers timeouts, DNS failures, resets and unreadable bodies.
	KindNetwork Kind = iota + 1
	// KindHTTP is a non-2xx status other than 401.
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	}

	return "unknown"
}

// Error is returned for every failed call.
type Error struct {
	Kind   Kind
	Method string
	Path   string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		if e.Body != "" {
			return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
		}

		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Status)
	}

	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindNetwork:
		return target == apperrors.ErrNetwork
	case KindHTTP:
		return target == apperrors.ErrHTTPStatus
	}

	return false
}

// IsNetwork reports whether err (or any error in its chain) is a
// network-level transport failure.
func IsNetwork(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindNetwork
}

// TokenSource supplies the access token attached to outgoing calls.
type TokenSource interface {
	AccessToken() string
}

// Request describes one call.
type Request struct {
	Method string
	// Path is appended to the base URL unless it is already absolute.
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
	// Token overrides the token source. Replays set it to the token the
	// refresh produced.
	Token string
	// Anonymous suppresses the auth header entirely.
	Anonymous bool
	Timeout   time.Duration
}

// Response is a completed call with a 2xx or 401 status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config configures New.
type Config struct {
	BaseURL     string
	TokenHeader string
	Timeout     time.Duration
	Tokens      TokenSource
	// HTTPClient overrides the default client. Its own timeout, if any,
	// still applies on top of the per-call timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Transport talks to the backend REST API.
type Transport struct {
	httpClient  *http.Client
	baseURL     string
	tokenHeader string
	timeout     time.Duration
	tokens      TokenSource
	logger      *slog.Logger
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host. This keeps the token header from
// leaking to third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// New creates a Transport. A nil HTTPClient gets a client with the
// same-host redirect policy.
func New(cfg Config) *Transport {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{CheckRedirect: sameHostRedirectPolicy}
	}

	if cfg.TokenHeader == "" {
		cfg.TokenHeader = DefaultTokenHeader
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokenHeader: cfg.TokenHeader,
		timeout:     cfg.Timeout,
		tokens:      cfg.Tokens,
		logger:      cfg.Logger,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// isAbsoluteURL reports whether path already carries an http(s) scheme.
func isAbsoluteURL(path string) bool {
	if len(path) >= 8 && strings.EqualFold(path[:8], "https://") {
		return true
	}

	return len(path) >= 7 && strings.EqualFold(path[:7], "http://")
}

// buildURL joins the base URL and path, then appends the query.
func (t *Transport) buildURL(path string, query url.Values) string {
	u := path
	if !isAbsoluteURL(path) {
		u = t.baseURL + path
	}

	if len(query) == 0 {
		return u
	}

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}

	return u + sep + query.Encode()
}

func encodeBody(body any) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(v), nil
	case json.RawMessage:
		return bytes.NewReader(v), nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		return bytes.NewReader(data), nil
	}
}

// Send performs one call. A 401 comes back as a Response so the caller
// can start the refresh flow; every other non-2xx status is an *Error.
func (t *Transport) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	bodyReader, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, t.buildURL(req.Path, req.Query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if !req.Anonymous {
		token := req.Token
		if token == "" && t.tokens != nil {
			token = t.tokens.AccessToken()
		}

		if token != "" {
			httpReq.Header.Set(t.tokenHeader, token)
		}
	}

	start := time.Now()

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		t.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)

		return nil, &Error{Kind: KindNetwork, Method: method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: method, Path: req.Path, Err: fmt.Errorf("reading response: %w", err)}
	}

	t.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	return nil, &Error{
		Kind:   KindHTTP,
		Method: method,
		Path:   req.Path,
		Status: resp.StatusCode,
		Body:   sanitizeResponseBody(body),
	}
}
