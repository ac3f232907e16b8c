// Package authclient runs the authorization code flow against the hosted
// identity service and owns the session cookie.
package authclient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/vasapolrittideah/flowup/services/web/internal/identity"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/payload"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/services/web/internal/usecase"
	"github.com/vasapolrittideah/flowup/shared/auth"
	"github.com/vasapolrittideah/flowup/shared/provider"
	"github.com/vasapolrittideah/flowup/shared/validation"
)

var (
	ErrInvalidState   = errors.New("unknown or expired login state")
	ErrMissingCode    = errors.New("callback has no authorization code")
	ErrNoSession      = errors.New("no session")
	ErrSessionPersist = errors.New("failed to persist session")
)

// IdentityProvider is the part of the OIDC client the flow depends on.
type IdentityProvider interface {
	AuthCodeURL(req provider.AuthRequest) string
	Exchange(ctx context.Context, code, codeVerifier, nonce string) (*provider.Identity, error)
	LogoutURL(returnTo string) string
}

// CallbackHandler decides where a completed login lands.
type CallbackHandler interface {
	Handle(ctx context.Context, callbackErr error, cbCtx usecase.CallbackContext, session *model.RawSession) string
}

// BeforeSessionSavedFunc turns the raw session into the record that is persisted.
type BeforeSessionSavedFunc func(ctx context.Context, session model.RawSession, idToken string) model.EnrichedSession

// Config holds the cookie and lifetime settings of the client.
type Config struct {
	BaseURL        string
	CookieName     string
	CookieSecure   bool
	SessionSecret  string
	SessionTTL     time.Duration
	TransactionTTL time.Duration
}

// Client serves the login, callback and logout routes.
type Client struct {
	config             Config
	provider           IdentityProvider
	transactions       repository.LoginTransactionRepository
	sessions           repository.SessionRepository
	jwt                auth.JWTAuthenticator
	beforeSessionSaved BeforeSessionSavedFunc
	onCallback         CallbackHandler
	validator          *validation.Validator
	logger             *zerolog.Logger
}

// NewClient creates a Client. beforeSessionSaved may be nil, in which case the
// session is stored with its subject parsed from the raw identity.
func NewClient(
	cfg Config,
	idp IdentityProvider,
	transactions repository.LoginTransactionRepository,
	sessions repository.SessionRepository,
	beforeSessionSaved BeforeSessionSavedFunc,
	onCallback CallbackHandler,
	logger *zerolog.Logger,
) *Client {
	if beforeSessionSaved == nil {
		beforeSessionSaved = usecase.BeforeSessionSaved
	}

	return &Client{
		config:             cfg,
		provider:           idp,
		transactions:       transactions,
		sessions:           sessions,
		jwt:                auth.NewJWTAuthenticator(cfg.BaseURL, cfg.BaseURL),
		beforeSessionSaved: beforeSessionSaved,
		onCallback:         onCallback,
		validator:          validation.New(),
		logger:             logger,
	}
}

// Login starts a new authorization request and redirects to the identity service.
func (c *Client) Login(w http.ResponseWriter, r *http.Request) {
	req := payload.NewLoginRequest(r.URL.Query())
	if err := c.validator.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := randomToken()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to generate login state")
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}
	nonce, err := randomToken()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to generate login nonce")
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	txn := &model.LoginTransaction{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: oauth2.GenerateVerifier(),
		ReturnTo:     req.SafeReturnTo(),
		ExpiresAt:    time.Now().Add(c.config.TransactionTTL),
	}
	if _, err := c.transactions.CreateTransaction(r.Context(), txn); err != nil {
		c.logger.Error().Err(err).Msg("failed to store login transaction")
		http.Error(w, "something went wrong", http.StatusInternalServerError)
		return
	}

	extra := map[string]string{}
	if req.ScreenHint != "" {
		extra["screen_hint"] = req.ScreenHint
	}

	http.Redirect(w, r, c.provider.AuthCodeURL(provider.AuthRequest{
		State:        txn.State,
		Nonce:        txn.Nonce,
		CodeVerifier: txn.CodeVerifier,
		Extra:        extra,
	}), http.StatusFound)
}

// Callback completes the authorization request. The canonical identity is
// computed once here and shared with the session hook and the callback
// controller through the request context.
func (c *Client) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cbCtx, session, err := c.completeLogin(ctx, r)
	if err != nil {
		http.Redirect(w, r, c.onCallback.Handle(ctx, err, cbCtx, nil), http.StatusFound)
		return
	}

	id := identity.Parse(session.User.ProviderQualifiedSub, identity.DefaultSeparator)
	ctx = identity.NewContext(ctx, id)

	if id.HasLocalID() {
		if err := c.persistSession(ctx, w, *session); err != nil {
			http.Redirect(w, r, c.onCallback.Handle(ctx, err, cbCtx, nil), http.StatusFound)
			return
		}
	}

	http.Redirect(w, r, c.onCallback.Handle(ctx, nil, cbCtx, session), http.StatusFound)
}

func (c *Client) completeLogin(ctx context.Context, r *http.Request) (usecase.CallbackContext, *model.RawSession, error) {
	q := r.URL.Query()

	var cbCtx usecase.CallbackContext
	state := q.Get("state")
	if state == "" {
		return cbCtx, nil, ErrInvalidState
	}

	txn, err := c.transactions.ConsumeTransaction(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return cbCtx, nil, ErrInvalidState
		}
		return cbCtx, nil, fmt.Errorf("consume login transaction: %w", err)
	}
	cbCtx.ReturnTo = txn.ReturnTo

	if idpErr := q.Get("error"); idpErr != "" {
		return cbCtx, nil, fmt.Errorf("identity provider: %s: %s", idpErr, q.Get("error_description"))
	}

	code := q.Get("code")
	if code == "" {
		return cbCtx, nil, ErrMissingCode
	}

	ident, err := c.provider.Exchange(ctx, code, txn.CodeVerifier, txn.Nonce)
	if err != nil {
		return cbCtx, nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	return cbCtx, &model.RawSession{
		User: model.RawIdentity{
			ProviderQualifiedSub: ident.Claims.Subject,
			Name:                 ident.Claims.Name,
			Nickname:             ident.Claims.Nickname,
			Email:                ident.Claims.Email,
			Picture:              ident.Claims.Picture,
		},
		IDToken: ident.RawIDToken,
	}, nil
}

func (c *Client) persistSession(ctx context.Context, w http.ResponseWriter, session model.RawSession) error {
	enriched := c.beforeSessionSaved(ctx, session, session.IDToken)
	enriched.SessionID = uuid.NewString()
	enriched.ExpiresAt = time.Now().Add(c.config.SessionTTL)

	if _, err := c.sessions.CreateSession(ctx, &enriched); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}

	token, err := c.jwt.IssueSessionToken(enriched.SessionID, enriched.User.Sub, enriched.ExpiresAt, c.config.SessionSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}

	c.setCookie(w, token, enriched.ExpiresAt)

	return nil
}

// Logout deletes the server-side session, clears the cookie and ends the
// identity service session.
func (c *Client) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := c.sessionClaims(r); err == nil {
		if err := c.sessions.DeleteSession(r.Context(), claims.SessionID); err != nil &&
			!errors.Is(err, repository.ErrSessionNotFound) {
			c.logger.Error().Err(err).Msg("failed to delete session")
		}
	}

	c.clearCookie(w)

	http.Redirect(w, r, c.provider.LogoutURL(c.config.BaseURL), http.StatusFound)
}

// Session returns the live session referenced by the request cookie.
func (c *Client) Session(r *http.Request) (*model.EnrichedSession, error) {
	claims, err := c.sessionClaims(r)
	if err != nil {
		return nil, err
	}

	session, err := c.sessions.GetSession(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	return session, nil
}

func (c *Client) sessionClaims(r *http.Request) (*auth.SessionClaims, error) {
	cookie, err := r.Cookie(c.config.CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, ErrNoSession
	}

	claims, err := c.jwt.ParseSessionToken(strings.TrimSpace(cookie.Value), c.config.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	return claims, nil
}

func (c *Client) setCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Client) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
