package ports

import (
	"context"

	"github.com/99minutos/admin-console/internal/core/domain"
)

// AuthBackend is the remote REST API's authentication surface.
type AuthBackend interface {
	// SignIn exchanges credentials for a token pair.
	SignIn(ctx context.Context, creds domain.Credentials) (domain.TokenPair, error)
	// Profile fetches the identity behind accessToken.
	Profile(ctx context.Context, accessToken string) (*domain.Profile, error)
	// Refresh mints a new access token. RefreshToken in the result is empty
	// unless the backend rotated it.
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}
