package request

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/alexjbarnes/tmc-client/internal/errors"
	"github.com/alexjbarnes/tmc-client/internal/models"
	"github.com/alexjbarnes/tmc-client/internal/transport"
)

// Backend paths used by the session machinery itself.
const (
	RefreshPath = "/api/auth/refresh"
	ProfilePath = "/api/me"
)

// APIRefresher calls the refresh endpoint over the raw transport. The
// call is anonymous: the expired access token is not sent.
type APIRefresher struct {
	transport Sender
}

// NewRefresher creates an APIRefresher.
func NewRefresher(t Sender) *APIRefresher {
	return &APIRefresher{transport: t}
}

// Refresh exchanges refreshToken for a new token pair. Any response
// other than a 2xx envelope with success=true wraps ErrRefreshRejected.
func (r *APIRefresher) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	resp, err := r.transport.Send(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      RefreshPath,
		Body:      models.RefreshRequest{RefreshToken: refreshToken},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", apperrors.ErrRefreshRejected, resp.StatusCode)
	}

	auth, err := Decode[*models.AuthResponse](parseEnvelope(resp.Body))
	if err != nil {
		var be *BusinessError
		if errors.As(err, &be) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrRefreshRejected, err)
		}

		return nil, err
	}

	return auth, nil
}

// APIProfiles fetches the profile with an explicit token, bypassing the
// Client so a 401 here never re-enters the Coordinator.
type APIProfiles struct {
	transport Sender
}

// NewProfileFetcher creates an APIProfiles.
func NewProfileFetcher(t Sender) *APIProfiles {
	return &APIProfiles{transport: t}
}

// FetchProfile loads the user profile for token.
func (p *APIProfiles) FetchProfile(ctx context.Context, token string) (*models.UserInfo, error) {
	resp, err := p.transport.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   ProfilePath,
		Token:  token,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: profile request unauthorized", apperrors.ErrHTTPStatus)
	}

	return Decode[*models.UserInfo](parseEnvelope(resp.Body))
}
