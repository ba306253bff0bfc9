package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
)

const defaultSessionTTL = 24 * time.Hour

// SessionStore keeps the session inside a signed artifact held by the browser.
// Sessions are never mutated in place: Update signs a new value and readers
// holding the previous one keep a consistent snapshot.
type SessionStore struct {
	codec   ports.SessionCodec
	revoked ports.RevocationList
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewSessionStore returns a SessionStore. revoked may be nil, in which case
// cleared artifacts stay valid until they expire.
func NewSessionStore(codec ports.SessionCodec, revoked ports.RevocationList, ttl time.Duration, log zerolog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		codec:   codec,
		revoked: revoked,
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

var _ ports.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Issue signs a freshly assembled session. Incomplete sessions are rejected
// so a partial login can never become observable.
func (s *SessionStore) Issue(_ context.Context, sess *domain.Session) (string, error) {
	if err := complete(sess); err != nil {
		return "", err
	}
	artifact, err := s.codec.Encode(sess)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	return artifact, nil
}

// Get decodes artifact. Absent, unverifiable, expired and revoked artifacts
// all yield domain.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, artifact string) (*domain.Session, error) {
	if artifact == "" {
		return nil, domain.ErrSessionNotFound
	}

	sess, err := s.codec.Decode(artifact)
	if err != nil {
		s.log.Debug().Err(err).Msg("session artifact rejected")
		return nil, domain.ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, domain.ErrSessionNotFound
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, sess.SessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("sid", sess.SessionID).Msg("revocation check failed, accepting session")
		} else if revoked {
			return nil, domain.ErrSessionNotFound
		}
	}

	return sess, nil
}

// Update merges patch over current and re-signs the result. The returned
// session shares nothing with current.
func (s *SessionStore) Update(_ context.Context, current *domain.Session, patch domain.SessionPatch) (*domain.Session, string, error) {
	if current == nil {
		return nil, "", domain.ErrSessionNotFound
	}

	next := patch.Apply(current)
	artifact, err := s.codec.Encode(next)
	if err != nil {
		return nil, "", fmt.Errorf("update session: %w", err)
	}
	return next, artifact, nil
}

// Clear revokes current so copies of its artifact stop verifying. The caller
// drops the cookie.
func (s *SessionStore) Clear(ctx context.Context, current *domain.Session) error {
	if current == nil || s.revoked == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, current.SessionID, current.ExpiresAt); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func complete(sess *domain.Session) error {
	switch {
	case sess == nil:
		return fmt.Errorf("issue session: %w", domain.ErrSessionNotFound)
	case sess.SessionID == "":
		return fmt.Errorf("issue session: missing session id")
	case sess.AccessToken == "" || sess.RefreshToken == "":
		return fmt.Errorf("issue session: %w", domain.ErrInvalidCredentials)
	case sess.ExpiresAt.IsZero():
		return fmt.Errorf("issue session: missing expiry")
	}
	return nil
}
