package backend

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

var (
	phonePattern   = regexp.MustCompile(`^1[3-9]\d{9}$`)
	otpCodePattern = regexp.MustCompile(`^\d{6}$`)
)

// Auth covers login, logout and the WeChat identity endpoints.
type Auth struct {
	api     API
	tokens  request.TokenStore
	profile *Profile
	logger  *slog.Logger
}

// NormalizePhone folds full-width digits, trims whitespace and reports
// whether the result is a mainland mobile number.
func NormalizePhone(phone string) (string, bool) {
	phone = strings.TrimSpace(width.Narrow.String(phone))
	return phone, phonePattern.MatchString(phone)
}

// ValidatePhone reports whether phone is a mainland mobile number.
func ValidatePhone(phone string) bool {
	_, ok := NormalizePhone(phone)
	return ok
}

// ValidateOTPCode reports whether code is six digits.
func ValidateOTPCode(code string) bool {
	return otpCodePattern.MatchString(strings.TrimSpace(width.Narrow.String(code)))
}

// SendOTP asks the server to text a verification code to phone.
func (a *Auth) SendOTP(ctx context.Context, phone, purpose string) error {
	phone, ok := NormalizePhone(phone)
	if !ok {
		return apperrors.ErrInvalidPhone
	}

	if purpose == "" {
		purpose = models.OTPPurposeLogin
	}

	return discard(a.api.Post(ctx, "/api/auth/otp", models.OTPRequest{Phone: phone, Purpose: purpose}))
}

// VerifyOTP checks a verification code.
func (a *Auth) VerifyOTP(ctx context.Context, phone, code, purpose string) error {
	phone, ok := NormalizePhone(phone)
	if !ok {
		return apperrors.ErrInvalidPhone
	}

	code = strings.TrimSpace(width.Narrow.String(code))
	if !otpCodePattern.MatchString(code) {
		return apperrors.ErrInvalidOTPCode
	}

	if purpose == "" {
		purpose = models.OTPPurposeLogin
	}

	return discard(a.api.Post(ctx, "/api/auth/otp/verify", models.OTPRequest{Phone: phone, Code: code, Purpose: purpose}))
}

// Code2Session exchanges a WeChat login code for the user's identity.
func (a *Auth) Code2Session(ctx context.Context, code string) (*models.WechatSession, error) {
	return decodeRequired[models.WechatSession](
		a.api.Post(ctx, "/api/auth/mini-program/code2session", models.CodeRequest{Code: code}),
	)
}

// DecryptPhone resolves the phone number the user authorized in WeChat.
func (a *Auth) DecryptPhone(ctx context.Context, req models.PhoneRequest) (string, error) {
	res, err := request.Decode[*models.PhoneResult](a.api.Post(ctx, "/api/auth/wechat/phone", req))
	if err != nil {
		return "", err
	}

	if res == nil || res.Phone == "" {
		return "", fmt.Errorf("%w: no phone number returned", apperrors.ErrUnexpectedResponse)
	}

	return res.Phone, nil
}

// LoginWithWechat signs in with a WeChat union id, persists the token
// pair and caches the user. The profile lookup that fills in the
// nickname is best effort.
func (a *Auth) LoginWithWechat(ctx context.Context, req models.LoginRequest) (*models.UserInfo, error) {
	if strings.TrimSpace(req.UnionID) == "" {
		return nil, fmt.Errorf("%w: union id", apperrors.ErrMissingID)
	}

	auth, err := request.Decode[*models.AuthResponse](a.api.Post(ctx, "/api/auth/login", req))
	if err != nil {
		return nil, err
	}

	if auth == nil || auth.Token == "" || auth.RefreshToken == "" {
		return nil, fmt.Errorf("%w: login response is missing tokens", apperrors.ErrUnexpectedResponse)
	}

	if err := a.tokens.SetTokens(auth.Token, auth.RefreshToken); err != nil {
		return nil, fmt.Errorf("storing tokens: %w", err)
	}

	info := auth.UserInfo(nil)
	if err := a.tokens.SetUserInfo(info); err != nil {
		a.logger.Warn("caching user info failed", slog.String("error", err.Error()))
	}

	a.logger.Info("logged in", slog.String("user_id", string(info.UserID)))

	profile, err := a.profile.Profile(ctx)
	if err != nil {
		a.logger.Warn("fetching profile after login failed", slog.String("error", err.Error()))
		return &info, nil
	}

	return profile, nil
}

// Logout tells the server the session is over, then clears local
// state whether or not the server call succeeded.
func (a *Auth) Logout(ctx context.Context) error {
	if err := discard(a.api.Post(ctx, "/api/auth/logout", nil)); err != nil {
		a.logger.Warn("logout request failed, clearing local session anyway", slog.String("error", err.Error()))
	}

	return a.tokens.ClearAll()
}

// IsLoggedIn reports whether an access token is stored.
func (a *Auth) IsLoggedIn() bool {
	return a.tokens.AccessToken() != ""
}

// CurrentUser returns the cached user, or nil when signed out.
func (a *Auth) CurrentUser() *models.UserInfo {
	return a.tokens.UserInfo()
}
