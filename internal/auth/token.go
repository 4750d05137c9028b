package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken means no access token is available at all; the consumer
	// must authenticate before connecting.
	ErrNoToken = errors.New("no access token available")

	// ErrReauthRequired means the refresh endpoint rejected us; the
	// consumer must re-authenticate from scratch.
	ErrReauthRequired = errors.New("token refresh failed, re-authentication required")
)

// refreshWindow is how close to expiry a token may get before we refresh
// it instead of handing it out.
const refreshWindow = 5 * time.Minute

// Provider hands out a valid bearer token, refreshing it through the
// backend's refresh endpoint when the current one is about to expire.
// Refresh credentials travel as cookies, which the provider's HTTP
// client accumulates in its jar.
type Provider struct {
	refreshURL string
	client     *http.Client
	logger     aqm.Logger

	mu    sync.Mutex
	token string

	now func() time.Time
}

// NewProvider creates a token provider. initialToken may be empty; in
// that case the first Token call fails with ErrNoToken until SetToken
// seeds one.
func NewProvider(refreshURL, initialToken string, logger aqm.Logger) *Provider {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	jar, _ := cookiejar.New(nil)
	return &Provider{
		refreshURL: refreshURL,
		client:     &http.Client{Jar: jar, Timeout: 10 * time.Second},
		logger:     logger,
		token:      initialToken,
		now:        time.Now,
	}
}

// SetToken replaces the current access token, e.g. after a fresh login.
func (p *Provider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

// Token returns a bearer token that is valid for at least the refresh
// window, refreshing it first if necessary.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token == "" {
		return "", ErrNoToken
	}

	expiry, err := tokenExpiry(token)
	if err != nil {
		// Undecodable tokens are treated as expiring: let the refresh
		// endpoint decide whether the session is still good.
		p.logger.Info("access token not decodable, refreshing", "error", err)
		return p.refresh(ctx)
	}

	if expiry.Sub(p.now()) < refreshWindow {
		p.logger.Info("access token expiring soon, refreshing")
		return p.refresh(ctx)
	}

	return token, nil
}

func (p *Provider) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.refreshURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Errorf("token refresh request failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Errorf("token refresh rejected with status %d", resp.StatusCode)
		return "", ErrReauthRequired
	}

	var body struct {
		AccessToken      string `json:"access_token"`
		AccessTokenAlias string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding refresh response: %v", ErrReauthRequired, err)
	}

	token := body.AccessToken
	if token == "" {
		token = body.AccessTokenAlias
	}
	if token == "" {
		return "", ErrReauthRequired
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.logger.Info("access token refreshed")
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client only needs the expiry; the server is the one that verifies.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
