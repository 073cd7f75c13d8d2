package errors

import "errors"

// Session errors.
var (
	ErrAuthExpired     = errors.New("login expired, please log in again")
	ErrNoRefreshToken  = errors.New("no refresh token stored")
	ErrRefreshRejected = errors.New("refresh token rejected")
	ErrNotLoggedIn     = errors.New("not logged in")
)

// Server/transport errors.
var (
	ErrNetwork            = errors.New("network request failed, check your connection")
	ErrHTTPStatus         = errors.New("unexpected HTTP status")
	ErrUnexpectedResponse = errors.New("unexpected API response")
)

// Input validation errors.
var (
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidOTPCode  = errors.New("invalid verification code")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
	ErrMissingID       = errors.New("id is required")
)
