package backend

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/99minutos/admin-console/internal/core/domain"
)

type accessTokenKey struct{}

// WithAccessToken attaches the caller's access token to ctx for BearerTransport.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// BearerTransport authorizes each outgoing request with the access token found
// in its context. Requests without one are sent with no Authorization header.
type BearerTransport struct {
	Base http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token, _ := req.Context().Value(accessTokenKey{}).(string)
	if token == "" {
		req = req.Clone(req.Context())
		req.Header.Del("Authorization")
		return base.RoundTrip(req)
	}

	tr := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(domain.TokenPair{AccessToken: token}.OAuth2()),
		Base:   base,
	}
	return tr.RoundTrip(req)
}
