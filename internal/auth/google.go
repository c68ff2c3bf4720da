package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultGoogleTokenURL = "https://oauth2.googleapis.com/token"
	defaultGoogleJWKSURL  = "https://www.googleapis.com/oauth2/v3/certs"
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

var ErrMissingIDToken = errors.New("google: token response has no id_token")

// ExternalIdentity is the part of a verified Google id_token the app keeps.
type ExternalIdentity struct {
	Email   string
	Name    string
	Picture string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string
	JWKSURL      string

	HTTPClient *http.Client
}

// GoogleProvider exchanges an authorization code for tokens and verifies the
// returned id_token against Google's published signing keys.
type GoogleProvider struct {
	config     GoogleConfig
	httpClient *http.Client

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultGoogleTokenURL
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = defaultGoogleJWKSURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &GoogleProvider{
		config:     cfg,
		httpClient: client,
	}
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

type googleClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error) {
	idToken, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.verifyIDToken(idToken)
}

func (p *GoogleProvider) exchange(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("google: reading token response: %w", err)
	}

	var tokenResp googleTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("google: decoding token response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return "", fmt.Errorf("google: token exchange failed (status %d): %s %s",
			resp.StatusCode, tokenResp.Error, tokenResp.ErrorDesc)
	}
	if tokenResp.IDToken == "" {
		return "", ErrMissingIDToken
	}
	return tokenResp.IDToken, nil
}

func (p *GoogleProvider) verifyIDToken(idToken string) (*ExternalIdentity, error) {
	jwks, err := p.keySet()
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(idToken, &googleClaims{}, jwks.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(p.config.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("google: verifying id_token: %w", err)
	}

	claims, ok := token.Claims.(*googleClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("google: invalid id_token claims")
	}
	if !googleIssuers[claims.Issuer] {
		return nil, fmt.Errorf("google: unexpected issuer %q", claims.Issuer)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("google: id_token has no email")
	}

	return &ExternalIdentity{
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// keySet fetches the JWKS on first use and keeps it refreshed in the
// background. A failed fetch is retried on the next call.
func (p *GoogleProvider) keySet() (*keyfunc.JWKS, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jwks != nil {
		return p.jwks, nil
	}

	jwks, err := keyfunc.Get(p.config.JWKSURL, keyfunc.Options{
		Client: p.httpClient,
		RefreshErrorHandler: func(err error) {
			slog.Warn("failed to refresh google signing keys", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("google: fetching signing keys: %w", err)
	}
	p.jwks = jwks
	return jwks, nil
}

// Close stops the background key refresh.
func (p *GoogleProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jwks != nil {
		p.jwks.EndBackground()
		p.jwks = nil
	}
}
