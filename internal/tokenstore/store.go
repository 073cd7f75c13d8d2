// Package tokenstore keeps the session credentials and the cached user
// snapshot in a persistent key/value backend.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/tmc-client/internal/models"
)

// Storage keys, shared with the Mini Program and H5 clients.
const (
	AccessTokenKey  = "x_token"
	RefreshTokenKey = "refresh_token"
	UserInfoKey     = "user_info"
)

// Backend is the key/value store the session lives in. Batch writes and
// deletes must be atomic.
type Backend interface {
	Get(key string) ([]byte, error)
	PutAll(entries map[string][]byte) error
	DeleteAll(keys ...string) error
}

// Store reads and writes the access token, refresh token and user info.
// Token contents are opaque and never validated.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a Store over backend.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{backend: backend, logger: logger}
}

// read returns the value under key. A failing backend reads as empty;
// the failure is logged rather than surfaced.
func (s *Store) read(key string) []byte {
	v, err := s.backend.Get(key)
	if err != nil {
		s.logger.Warn("reading session key failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return v
}

// AccessToken returns the stored access token, or "".
func (s *Store) AccessToken() string {
	return string(s.read(AccessTokenKey))
}

// SetAccessToken overwrites the access token alone.
func (s *Store) SetAccessToken(token string) error {
	return s.put(map[string][]byte{AccessTokenKey: []byte(token)})
}

// RefreshToken returns the stored refresh token, or "".
func (s *Store) RefreshToken() string {
	return string(s.read(RefreshTokenKey))
}

// SetRefreshToken overwrites the refresh token alone.
func (s *Store) SetRefreshToken(token string) error {
	return s.put(map[string][]byte{RefreshTokenKey: []byte(token)})
}

// SetTokens writes both tokens in one batch. Login and refresh always
// go through here so the pair can never be observed half-updated.
func (s *Store) SetTokens(access, refresh string) error {
	return s.put(map[string][]byte{
		AccessTokenKey:  []byte(access),
		RefreshTokenKey: []byte(refresh),
	})
}

// UserInfo returns the cached user snapshot, or nil when none is stored
// or the stored value cannot be decoded.
func (s *Store) UserInfo() *models.UserInfo {
	raw := s.read(UserInfoKey)
	if len(raw) == 0 {
		return nil
	}

	var info models.UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		s.logger.Warn("discarding unreadable user info", slog.String("error", err.Error()))
		return nil
	}

	return &info
}

// SetUserInfo replaces the cached user snapshot.
func (s *Store) SetUserInfo(info models.UserInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding user info: %w", err)
	}

	return s.put(map[string][]byte{UserInfoKey: data})
}

// ClearAll removes both tokens and the user snapshot in one batch.
func (s *Store) ClearAll() error {
	if err := s.backend.DeleteAll(AccessTokenKey, RefreshTokenKey, UserInfoKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	return nil
}

func (s *Store) put(entries map[string][]byte) error {
	if err := s.backend.PutAll(entries); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}
