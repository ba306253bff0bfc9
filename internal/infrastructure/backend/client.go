package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/99minutos/admin-console/internal/core/domain"
	"github.com/99minutos/admin-console/internal/core/ports"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20

	signInPath  = "/auth/signin"
	refreshPath = "/auth/refresh"
)

// ErrRejected is returned when the backend answers but refuses the request.
var ErrRejected = errors.New("backend rejected request")

// Config captures the remote REST API endpoints.
type Config struct {
	APIURL     string
	ProfileURL string
	Timeout    time.Duration
}

// Client is the HTTP implementation of ports.AuthBackend.
type Client struct {
	apiURL     string
	profileURL string
	http       *http.Client
}

var _ ports.AuthBackend = (*Client)(nil)

// NewClient builds a Client. Every call is bounded by cfg.Timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	api := strings.TrimRight(cfg.APIURL, "/")
	profile := cfg.ProfileURL
	if profile == "" {
		profile = api + "/users/profile"
	}
	return &Client{
		apiURL:     api,
		profileURL: profile,
		http:       &http.Client{Timeout: timeout},
	}
}

// HTTPClient is the bounded client shared with the API proxy.
func (c *Client) HTTPClient() *http.Client { return c.http }

// signInResponse accepts both the success and the error shape of the sign-in
// endpoint.
type signInResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Error        json.RawMessage `json:"error,omitempty"`
	Message      string          `json:"message,omitempty"`
}

func (r signInResponse) failed() bool {
	switch strings.TrimSpace(string(r.Error)) {
	case "", "null", "false", `""`:
		return false
	}
	return true
}

// SignIn posts the credentials to {API}/auth/signin.
func (c *Client) SignIn(ctx context.Context, creds domain.Credentials) (domain.TokenPair, error) {
	var out signInResponse
	if err := c.postJSON(ctx, c.http, c.apiURL+signInPath, creds, &out); err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign-in: %w", err)
	}
	if out.failed() {
		return domain.TokenPair{}, fmt.Errorf("sign-in: %w: %s", ErrRejected, out.Message)
	}
	return domain.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// Profile fetches the identity behind accessToken.
func (c *Client) Profile(ctx context.Context, accessToken string) (*domain.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var p domain.Profile
	if err := c.do(c.bearer(accessToken), req, &p); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &p, nil
}

// Refresh posts refreshToken to {API}/auth/refresh, both as the JSON body and
// as the bearer credential.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var out signInResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.postJSON(ctx, c.bearer(refreshToken), c.apiURL+refreshPath, body, &out); err != nil {
		return domain.TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	if out.failed() {
		return domain.TokenPair{}, fmt.Errorf("refresh: %w: %s", ErrRejected, out.Message)
	}
	return domain.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// bearer returns a client that attaches token as Authorization: Bearer.
func (c *Client) bearer(token string) *http.Client {
	return &http.Client{
		Timeout: c.http.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(domain.TokenPair{AccessToken: token}.OAuth2()),
			Base:   c.http.Transport,
		},
	}
}

func (c *Client) postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(client, req, out)
}

func (c *Client) do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status=%d", ErrRejected, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
