// Package backend exposes the app's REST endpoints as typed calls on
// top of the authenticated request layer.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

// API is the request surface the services need. *request.Client
// implements it.
type API interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Services groups every feature service behind one handle.
type Services struct {
	Auth    *Auth
	Profile *Profile
	Content *Content
	Courses *Courses
	Home    *Home
	AI      *AI
}

// New wires all services to api. tokens is the same store the request
// layer uses; auth and profile calls update it.
func New(api API, tokens request.TokenStore, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}

	profile := &Profile{api: api, tokens: tokens, logger: logger}

	return &Services{
		Auth:    &Auth{api: api, tokens: tokens, profile: profile, logger: logger},
		Profile: profile,
		Content: &Content{api: api},
		Courses: &Courses{api: api},
		Home:    &Home{api: api, logger: logger},
		AI:      &AI{api: api},
	}
}

// resourcePath joins a collection path, an escaped id and optional
// trailing segments.
func resourcePath(collection, id string, segments ...string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperrors.ErrMissingID
	}

	parts := append([]string{collection, url.PathEscape(id)}, segments...)

	return strings.Join(parts, "/"), nil
}

// setPositive adds key=n to v when n > 0.
func setPositive(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

// setNonEmpty adds key=s to v when s is not blank.
func setNonEmpty(v url.Values, key, s string) {
	if s = strings.TrimSpace(s); s != "" {
		v.Set(key, s)
	}
}

// clamp limits n to [1, maxN], substituting def for non-positive n.
func clamp(n, def, maxN int) int {
	switch {
	case n <= 0:
		return def
	case n > maxN:
		return maxN
	}

	return n
}

// discard runs a call whose data payload is not needed.
func discard(_ json.RawMessage, err error) error {
	return err
}

// decodeRequired decodes a payload that must not be null.
func decodeRequired[T any](data json.RawMessage, err error) (*T, error) {
	v, err := request.Decode[*T](data, err)
	if err != nil {
		return nil, err
	}

	if v == nil {
		return nil, fmt.Errorf("%w: response has no data", apperrors.ErrUnexpectedResponse)
	}

	return v, nil
}
