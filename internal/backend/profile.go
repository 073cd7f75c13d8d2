package backend

import (
	"context"
	"log/slog"

	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/request"
)

// Profile covers the signed-in user's own records.
type Profile struct {
	api    API
	tokens request.TokenStore
	logger *slog.Logger
}

// Profile fetches the current user and refreshes the cached snapshot.
func (p *Profile) Profile(ctx context.Context) (*models.UserInfo, error) {
	fetched, err := decodeRequired[models.UserInfo](p.api.Get(ctx, request.ProfilePath, nil))
	if err != nil {
		return nil, err
	}

	info := *fetched
	if cached := p.tokens.UserInfo(); cached != nil {
		info = cached.Merge(info)
	}

	if err := p.tokens.SetUserInfo(info); err != nil {
		p.logger.Warn("caching user info failed", slog.String("error", err.Error()))
	}

	return &info, nil
}

// HealthProfile fetches the user's health questionnaire.
func (p *Profile) HealthProfile(ctx context.Context) (models.HealthProfile, error) {
	return request.Decode[models.HealthProfile](p.api.Get(ctx, "/api/me/health-profile", nil))
}

// SaveHealthProfile replaces the user's health questionnaire.
func (p *Profile) SaveHealthProfile(ctx context.Context, profile models.HealthProfile) error {
	if profile == nil {
		profile = models.HealthProfile{}
	}

	return discard(p.api.Post(ctx, "/api/me/health-profile", profile))
}

// MembershipStatus fetches the user's membership benefits.
func (p *Profile) MembershipStatus(ctx context.Context) (models.MembershipStatus, error) {
	return request.Decode[models.MembershipStatus](p.api.Get(ctx, "/api/membership/status", nil))
}
