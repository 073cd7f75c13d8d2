// Package models defines types shared across internal packages.
package models

import (
	"encoding/json"
	"fmt"
)

// ID is a backend identifier. The backend is inconsistent about sending
// ids as JSON numbers or strings, so both are accepted and kept as a
// string.
type ID string

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}

		*id = ID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}

	*id = ID(n.String())

	return nil
}

// Envelope wraps every backend response.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// UserInfo is the cached snapshot of the signed-in user. It is a
// rendering convenience only; /api/me is the source of truth.
type UserInfo struct {
	UserID   ID     `json:"userId"`
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar"`
	Nickname string `json:"nickname"`
}

// Merge returns u with every non-empty field of other applied on top.
func (u UserInfo) Merge(other UserInfo) UserInfo {
	if other.UserID != "" {
		u.UserID = other.UserID
	}

	if other.Phone != "" {
		u.Phone = other.Phone
	}

	if other.Avatar != "" {
		u.Avatar = other.Avatar
	}

	if other.Nickname != "" {
		u.Nickname = other.Nickname
	}

	return u
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	UnionID  string `json:"unionId"`
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar"`
	Nickname string `json:"nickname"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by both login and refresh.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       ID     `json:"userId"`
	Phone        string `json:"phone"`
	Avatar       string `json:"avatar"`
}

// UserInfo builds the cache entry for a fresh login or refresh. The
// auth endpoints never return a nickname, so it is carried over from
// prev, as is the avatar when the response omits it.
func (a *AuthResponse) UserInfo(prev *UserInfo) UserInfo {
	info := UserInfo{
		UserID: a.UserID,
		Phone:  a.Phone,
		Avatar: a.Avatar,
	}

	if prev != nil {
		info.Nickname = prev.Nickname
		if info.Avatar == "" {
			info.Avatar = prev.Avatar
		}
	}

	return info
}
