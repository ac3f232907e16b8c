package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrMissingIDToken = errors.New("token response has no id_token")
	ErrNonceMismatch  = errors.New("id_token nonce mismatch")
)

// Config describes the hosted identity service client registration.
type Config struct {
	Domain                string   `env:"DOMAIN"                  validate:"required,hostname_port|hostname_rfc1123"`
	ClientID              string   `env:"CLIENT_ID"               validate:"required"`
	ClientSecret          string   `env:"CLIENT_SECRET"           validate:"required"`
	Scopes                []string `env:"SCOPES"                  envDefault:"openid,profile,email"`
	AllowInsecureRequests bool     `env:"ALLOW_INSECURE_REQUESTS"`
}

// Claims are the id_token claims the application reads. Subject is the
// provider-qualified subject, e.g. "github|42".
type Claims struct {
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	Nickname      string `json:"nickname"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// Identity is the result of a successful code exchange.
type Identity struct {
	Claims     Claims
	RawIDToken string
	Expiry     time.Time
}

// AuthRequest carries the per-login values bound into the authorization URL.
type AuthRequest struct {
	State        string
	Nonce        string
	CodeVerifier string
	// Extra is forwarded verbatim as query parameters (e.g. screen_hint).
	Extra map[string]string
}

// OIDCProvider performs the authorization code flow against the hosted
// identity service discovered at Config.Domain.
type OIDCProvider struct {
	oauth2        oauth2.Config
	verifier      *oidc.IDTokenVerifier
	httpClient    *http.Client
	issuer        string
	clientID      string
	endSessionURL string
}

// NewOIDCProvider runs discovery and prepares the OAuth2 client. redirectURL
// is the absolute callback URL registered with the identity service.
func NewOIDCProvider(ctx context.Context, cfg Config, redirectURL string) (*OIDCProvider, error) {
	scheme := "https"
	if cfg.AllowInsecureRequests {
		scheme = "http"
	}
	issuer := fmt.Sprintf("%s://%s/", scheme, strings.TrimSuffix(cfg.Domain, "/"))

	httpClient := &http.Client{Timeout: 10 * time.Second}
	ctx = oidc.ClientContext(ctx, httpClient)

	op, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", issuer, err)
	}

	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	_ = op.Claims(&meta)

	return &OIDCProvider{
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     op.Endpoint(),
			RedirectURL:  redirectURL,
			Scopes:       cfg.Scopes,
		},
		verifier:      op.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		httpClient:    httpClient,
		issuer:        issuer,
		clientID:      cfg.ClientID,
		endSessionURL: meta.EndSessionEndpoint,
	}, nil
}

// AuthCodeURL builds the redirect to the identity service login page.
func (p *OIDCProvider) AuthCodeURL(req AuthRequest) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", req.Nonce),
		oauth2.S256ChallengeOption(req.CodeVerifier),
	}
	for k, v := range req.Extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	return p.oauth2.AuthCodeURL(req.State, opts...)
}

// Exchange trades the authorization code for tokens and verifies the id_token.
func (p *OIDCProvider) Exchange(ctx context.Context, code, codeVerifier, nonce string) (*Identity, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	token, err := p.oauth2.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != nonce {
		return nil, ErrNonceMismatch
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	claims.Subject = idToken.Subject

	return &Identity{
		Claims:     claims,
		RawIDToken: rawIDToken,
		Expiry:     idToken.Expiry,
	}, nil
}

// LogoutURL returns the identity service logout URL that lands on returnTo.
// Without a discovered end_session_endpoint the hosted service's /v2/logout is used.
func (p *OIDCProvider) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", p.clientID)

	if p.endSessionURL != "" {
		q.Set("post_logout_redirect_uri", returnTo)
		return p.endSessionURL + "?" + q.Encode()
	}

	q.Set("returnTo", returnTo)
	return strings.TrimSuffix(p.issuer, "/") + "/v2/logout?" + q.Encode()
}
