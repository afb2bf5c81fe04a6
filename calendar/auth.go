package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/guilherme-santos/calsync/internal"
)

var ErrUnauthorized = errors.New("calendar: unauthorized after refreshing token")

// AuthTransport adds the account's bearer token to every request. When the
// provider answers 401 the token is refreshed once, handed to
// UpdateCredentials and the request is retried once.
type AuthTransport struct {
	Base    http.RoundTripper
	OAuth   *oauth2.Config
	Limiter *rate.Limiter
	Logger  *slog.Logger

	UpdateCredentials func(context.Context, internal.Credentials) error

	mu    sync.Mutex
	creds internal.Credentials
}

func NewAuthTransport(cfg internal.ProviderConfig, endpoint oauth2.Endpoint) *AuthTransport {
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &AuthTransport{
		Base: base,
		OAuth: &oauth2.Config{
			ClientID:     cfg.Client.ID,
			ClientSecret: cfg.Client.Secret,
			Endpoint:     endpoint,
		},
		Logger:            logger,
		UpdateCredentials: cfg.UpdateCredentials,
		creds:             cfg.Credentials,
	}
	if cfg.RateLimit > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return t
}

// NewHTTPClient returns a client authenticated as the account described by cfg.
func NewHTTPClient(cfg internal.ProviderConfig, endpoint oauth2.Endpoint) *http.Client {
	c := &http.Client{Transport: NewAuthTransport(cfg, endpoint)}
	if cfg.HTTPClient != nil {
		c.Timeout = cfg.HTTPClient.Timeout
	}
	return c
}

func (t *AuthTransport) Credentials() internal.Credentials {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.creds
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	token := t.Credentials().AccessToken
	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	token, err = t.refresh(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err = t.send(req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		return nil, ErrUnauthorized
	}
	return resp, nil
}

func (t *AuthTransport) send(req *http.Request, token string) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return t.Base.RoundTrip(r)
}

// refresh exchanges the refresh token for a new access token, unless a
// concurrent request already replaced the token that was rejected.
func (t *AuthTransport) refresh(ctx context.Context, rejected string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.creds.AccessToken != rejected {
		return t.creds.AccessToken, nil
	}
	if t.creds.RefreshToken == "" {
		return "", ErrUnauthorized
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: t.Base})
	tok, err := t.OAuth.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: t.creds.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: refreshing token: %w", ErrUnauthorized, err)
	}

	creds := internal.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: t.creds.RefreshToken,
	}
	if tok.RefreshToken != "" {
		creds.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		creds.ExpiresAt = &expiry
	}
	t.creds = creds
	t.Logger.DebugContext(ctx, "access token refreshed")

	if t.UpdateCredentials != nil {
		if err := t.UpdateCredentials(ctx, creds); err != nil {
			t.Logger.ErrorContext(ctx, "unable to save refreshed credentials", slog.Any("error", err))
		}
	}
	return creds.AccessToken, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
