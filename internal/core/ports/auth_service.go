package ports

import (
	"context"

	"github.com/99minutos/admin-console/internal/core/domain"
)

// AuthService is the credential authenticator used by the transport layer.
type AuthService interface {
	Authenticate(ctx context.Context, phoneNumber, password string) (domain.TokenPair, error)
	FetchProfile(ctx context.Context, accessToken string) (*domain.Profile, bool)
	// Login returns the new session and its signed artifact.
	Login(ctx context.Context, phoneNumber, password string) (*domain.Session, string, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	// RefreshSession refreshes current's access token and merges it into a
	// re-signed session.
	RefreshSession(ctx context.Context, current *domain.Session) (*domain.Session, string, error)
	// ReloadProfile re-fetches the profile and merges it (roles excluded).
	ReloadProfile(ctx context.Context, current *domain.Session) (*domain.Session, string, error)
	Logout(ctx context.Context, current *domain.Session) error
}
