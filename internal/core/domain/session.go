package domain

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is a phone number + password pair submitted on login.
// It is never persisted or logged.
type Credentials struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// TokenPair is the opaque bearer credential pair issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// OAuth2 exposes the access token as an oauth2.Token so callers can build a
// bearer-authenticated http.Client with oauth2.StaticTokenSource.
func (p TokenPair) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "Bearer",
	}
}

// Session is the merged identity and token state of one authenticated browser.
// Values are treated as immutable once built; updates produce a new Session.
type Session struct {
	SessionID    string    `json:"sid"`
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email,omitempty"`
	Image        string    `json:"image,omitempty"`
	Roles        []string  `json:"roles"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"iat"`
	ExpiresAt    time.Time `json:"exp"`
}

// NewSession assembles a Session from a complete profile and token pair.
func NewSession(id string, profile Profile, tokens TokenPair, issuedAt time.Time, ttl time.Duration) *Session {
	return &Session{
		SessionID:    id,
		ID:           profile.ID,
		Name:         profile.FullName(),
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Email:        profile.Email,
		Image:        profile.Image,
		Roles:        append([]string(nil), profile.Roles...),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(ttl),
	}
}

// Tokens returns the session's current token pair.
func (s *Session) Tokens() TokenPair {
	return TokenPair{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// HasRole reports whether the session carries role.
func (s *Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy; the roles slice is not shared.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Roles = append([]string(nil), s.Roles...)
	return &c
}

// SessionPatch carries the fields of a partial session update. Nil fields are
// left untouched. Roles and identity are deliberately absent.
type SessionPatch struct {
	AccessToken  *string
	RefreshToken *string
	FirstName    *string
	LastName     *string
	Email        *string
	Image        *string
}

// AccessTokenPatch is the common refresh patch.
func AccessTokenPatch(token string) SessionPatch {
	return SessionPatch{AccessToken: &token}
}

// ProfilePatch replaces the mutable profile fields. Roles are not carried over.
func ProfilePatch(p Profile) SessionPatch {
	return SessionPatch{
		FirstName: &p.FirstName,
		LastName:  &p.LastName,
		Email:     &p.Email,
		Image:     &p.Image,
	}
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p.AccessToken == nil && p.RefreshToken == nil && p.FirstName == nil &&
		p.LastName == nil && p.Email == nil && p.Image == nil
}

// Apply returns a new Session with the patch merged over s. Empty token
// values in the patch are ignored so a merge can never blank the token pair.
func (p SessionPatch) Apply(s *Session) *Session {
	next := s.Clone()
	if p.AccessToken != nil && *p.AccessToken != "" {
		next.AccessToken = *p.AccessToken
	}
	if p.RefreshToken != nil && *p.RefreshToken != "" {
		next.RefreshToken = *p.RefreshToken
	}
	if p.FirstName != nil {
		next.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		next.LastName = *p.LastName
	}
	if p.Email != nil {
		next.Email = *p.Email
	}
	if p.Image != nil {
		next.Image = *p.Image
	}
	next.Name = Profile{FirstName: next.FirstName, LastName: next.LastName}.FullName()
	return next
}
