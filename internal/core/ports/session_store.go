package ports

import (
	"context"
	"time"

	"github.com/99minutos/admin-console/internal/core/domain"
)

// SessionCodec signs and verifies the client-held session artifact.
type SessionCodec interface {
	Encode(s *domain.Session) (string, error)
	// Decode fails for any tampered, malformed or expired artifact.
	Decode(artifact string) (*domain.Session, error)
}

// RevocationList remembers cleared sessions until their artifacts expire.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// SessionStore holds the authenticated session of a browser.
type SessionStore interface {
	Issue(ctx context.Context, s *domain.Session) (string, error)
	Get(ctx context.Context, artifact string) (*domain.Session, error)
	Update(ctx context.Context, current *domain.Session, patch domain.SessionPatch) (*domain.Session, string, error)
	Clear(ctx context.Context, current *domain.Session) error
	TTL() time.Duration
}
