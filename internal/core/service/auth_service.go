package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
	"github.com/99minutos/admin-console/internal/pkg/metrics"
)

// AuditRecorder queues authentication events for asynchronous persistence.
type AuditRecorder interface {
	Enqueue(event domain.AuthEvent)
}

type requestIDKey struct{}

// WithRequestID tags ctx so audit events can be correlated with access logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id set by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// AuthService exchanges credentials for sessions and keeps their tokens fresh.
type AuthService struct {
	backend ports.AuthBackend
	store   ports.SessionStore
	audit   AuditRecorder
	log     zerolog.Logger

	newID func() string
	now   func() time.Time

	refreshes singleflight.Group
}

// NewAuthService wires the authenticator. audit may be nil.
func NewAuthService(backend ports.AuthBackend, store ports.SessionStore, audit AuditRecorder, log zerolog.Logger) *AuthService {
	return &AuthService{
		backend: backend,
		store:   store,
		audit:   audit,
		log:     log,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

var _ ports.AuthService = (*AuthService)(nil)

// Authenticate calls the sign-in endpoint once. Every failure, including
// transport faults, collapses into domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, phoneNumber, password string) (domain.TokenPair, error) {
	if strings.TrimSpace(phoneNumber) == "" || password == "" {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	tokens, err := s.backend.SignIn(ctx, domain.Credentials{PhoneNumber: phoneNumber, Password: password})
	if err != nil {
		s.log.Info().Err(err).Str("phone", domain.MaskPhone(phoneNumber)).Msg("sign-in rejected")
		return domain.TokenPair{}, fmt.Errorf("authenticate: %w", domain.ErrInvalidCredentials)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		s.log.Warn().Str("phone", domain.MaskPhone(phoneNumber)).Msg("sign-in returned an incomplete token pair")
		return domain.TokenPair{}, fmt.Errorf("authenticate: %w", domain.ErrInvalidCredentials)
	}
	return tokens, nil
}

// FetchProfile returns false when the identity cannot be established.
func (s *AuthService) FetchProfile(ctx context.Context, accessToken string) (*domain.Profile, bool) {
	if accessToken == "" {
		return nil, false
	}
	profile, err := s.backend.Profile(ctx, accessToken)
	if err != nil || profile == nil {
		s.log.Warn().Err(err).Msg("profile fetch failed")
		return nil, false
	}
	return profile, true
}

// Login authenticates, fetches the profile with the new access token and only
// then hands a complete session to the store.
func (s *AuthService) Login(ctx context.Context, phoneNumber, password string) (*domain.Session, string, error) {
	start := s.now()
	sess, artifact, err := s.login(ctx, phoneNumber, password)

	metrics.LoginsTotal.WithLabelValues(outcome(err)).Inc()
	metrics.LoginDuration.Observe(s.now().Sub(start).Seconds())

	event := domain.AuthEvent{Kind: domain.EventLogin, Phone: domain.MaskPhone(phoneNumber)}
	if sess != nil {
		event.SessionID = sess.SessionID
		event.UserID = sess.ID
	}
	s.record(ctx, event, err)

	return sess, artifact, err
}

func (s *AuthService) login(ctx context.Context, phoneNumber, password string) (*domain.Session, string, error) {
	tokens, err := s.Authenticate(ctx, phoneNumber, password)
	if err != nil {
		return nil, "", err
	}

	profile, ok := s.FetchProfile(ctx, tokens.AccessToken)
	if !ok {
		return nil, "", fmt.Errorf("login: %w", domain.ErrProfileUnavailable)
	}

	sess := domain.NewSession(s.newID(), *profile, tokens, s.now().UTC(), s.store.TTL())
	artifact, err := s.store.Issue(ctx, sess)
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}

	s.log.Info().Str("sid", sess.SessionID).Int64("user_id", sess.ID).Msg("session created")
	return sess, artifact, nil
}

// Refresh exchanges refreshToken for a new access token. It never touches the
// session store.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		return domain.TokenPair{}, domain.ErrRefreshFailed
	}
	tokens, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		s.log.Info().Err(err).Msg("token refresh rejected")
		return domain.TokenPair{}, fmt.Errorf("refresh: %w", domain.ErrRefreshFailed)
	}
	if tokens.AccessToken == "" {
		return domain.TokenPair{}, fmt.Errorf("refresh: empty access token: %w", domain.ErrRefreshFailed)
	}
	return tokens, nil
}

type refreshResult struct {
	session  *domain.Session
	artifact string
}

// RefreshSession refreshes and merges the new access token into current.
// Concurrent calls for the same session share one backend round trip and one
// re-signed artifact. The shared work ignores the caller's cancellation so one
// aborted request cannot fail the others; the backend timeout bounds it.
func (s *AuthService) RefreshSession(ctx context.Context, current *domain.Session) (*domain.Session, string, error) {
	if current == nil {
		return nil, "", domain.ErrSessionNotFound
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := s.refreshes.Do(current.SessionID, func() (any, error) {
		tokens, err := s.Refresh(shared, current.RefreshToken)
		if err != nil {
			return nil, err
		}
		patch := domain.AccessTokenPatch(tokens.AccessToken)
		if tokens.RefreshToken != "" {
			patch.RefreshToken = &tokens.RefreshToken
		}
		next, artifact, err := s.store.Update(shared, current, patch)
		if err != nil {
			return nil, err
		}
		return refreshResult{session: next, artifact: artifact}, nil
	})

	metrics.RefreshesTotal.WithLabelValues(outcome(err)).Inc()
	s.record(ctx, domain.AuthEvent{Kind: domain.EventRefresh, SessionID: current.SessionID, UserID: current.ID}, err)

	if err != nil {
		return nil, "", err
	}
	res := v.(refreshResult)
	return res.session, res.artifact, nil
}

// ReloadProfile re-fetches the profile and merges the mutable fields.
func (s *AuthService) ReloadProfile(ctx context.Context, current *domain.Session) (*domain.Session, string, error) {
	if current == nil {
		return nil, "", domain.ErrSessionNotFound
	}
	profile, ok := s.FetchProfile(ctx, current.AccessToken)
	if !ok {
		return nil, "", domain.ErrProfileUnavailable
	}
	return s.store.Update(ctx, current, domain.ProfilePatch(*profile))
}

// Logout clears the session. It is safe to call without a session.
func (s *AuthService) Logout(ctx context.Context, current *domain.Session) error {
	if current == nil {
		return nil
	}
	err := s.store.Clear(ctx, current)
	s.record(ctx, domain.AuthEvent{Kind: domain.EventLogout, SessionID: current.SessionID, UserID: current.ID}, err)
	if err != nil {
		return err
	}
	s.log.Info().Str("sid", current.SessionID).Msg("session cleared")
	return nil
}

func (s *AuthService) record(ctx context.Context, event domain.AuthEvent, err error) {
	if s.audit == nil {
		return
	}
	event.Outcome = outcome(err)
	event.RequestID = RequestIDFrom(ctx)
	event.At = s.now().UTC()
	s.audit.Enqueue(event)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.FailureOf(err).String()
}
