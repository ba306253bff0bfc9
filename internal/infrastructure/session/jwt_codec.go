package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
)

const (
	// Issuer and audience of every session artifact.
	Issuer = "admin-console"

	signingInfo    = "admin-console session signing v1"
	encryptionInfo = "admin-console session tokens v1"
)

var errTokenEnvelope = errors.New("session: token envelope rejected")

type sessionClaims struct {
	jwt.RegisteredClaims
	UserID    int64    `json:"uid"`
	Name      string   `json:"name"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Image     string   `json:"image,omitempty"`
	Roles     []string `json:"roles"`
	// Tokens is the sealed TokenPair; bearer tokens never travel in clear.
	Tokens string `json:"tok"`
}

// JWTCodec signs sessions as HS256 JWTs. The token pair inside the payload is
// sealed with XChaCha20-Poly1305. Both keys are derived from one secret with
// HKDF-SHA256.
type JWTCodec struct {
	signingKey []byte
	aead       cipher.AEAD
	now        func() time.Time
}

var _ ports.SessionCodec = (*JWTCodec)(nil)

// NewJWTCodec derives the codec keys from secret.
func NewJWTCodec(secret []byte) (*JWTCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session: empty secret")
	}

	signingKey, err := deriveKey(secret, signingInfo, 32)
	if err != nil {
		return nil, err
	}
	encKey, err := deriveKey(secret, encryptionInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &JWTCodec{signingKey: signingKey, aead: aead, now: time.Now}, nil
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return key, nil
}

// Encode signs s.
func (c *JWTCodec) Encode(s *domain.Session) (string, error) {
	if s == nil {
		return "", errors.New("session: nil session")
	}

	sealed, err := c.seal(s.Tokens(), s.SessionID)
	if err != nil {
		return "", err
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.SessionID,
			Subject:   strconv.FormatInt(s.ID, 10),
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Issuer},
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		UserID:    s.ID,
		Name:      s.Name,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Image:     s.Image,
		Roles:     s.Roles,
		Tokens:    sealed,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies artifact and rebuilds the session. Any signature, algorithm,
// issuer, audience or expiry mismatch is an error.
func (c *JWTCodec) Decode(artifact string) (*domain.Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(artifact, claims,
		func(*jwt.Token) (any, error) { return c.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("session: verify: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("session: missing jti")
	}

	tokens, err := c.open(claims.Tokens, claims.ID)
	if err != nil {
		return nil, err
	}

	s := &domain.Session{
		SessionID:    claims.ID,
		ID:           claims.UserID,
		Name:         claims.Name,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		Email:        claims.Email,
		Image:        claims.Image,
		Roles:        claims.Roles,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	return s, nil
}

// seal binds the ciphertext to the session id so envelopes cannot be swapped
// between artifacts.
func (c *JWTCodec) seal(tokens domain.TokenPair, sessionID string) (string, error) {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("session: marshal tokens: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("session: nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, plain, []byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (c *JWTCodec) open(envelope, sessionID string) (domain.TokenPair, error) {
	raw, err := base64.RawURLEncoding.DecodeString(envelope)
	if err != nil || len(raw) < c.aead.NonceSize() {
		return domain.TokenPair{}, errTokenEnvelope
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, []byte(sessionID))
	if err != nil {
		return domain.TokenPair{}, errTokenEnvelope
	}
	var tokens domain.TokenPair
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return domain.TokenPair{}, errTokenEnvelope
	}
	return tokens, nil
}
