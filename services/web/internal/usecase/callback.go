package usecase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/flowup/services/web/internal/config"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/shared/metrics"
)

// CallbackContext is what the identity client remembers about the login request.
type CallbackContext struct {
	// ReturnTo is a same-origin relative path validated by the identity client.
	ReturnTo string
}

// CallbackController decides where a completed login lands. Every failure
// sends the user to the logout route; nothing is surfaced to the caller.
type CallbackController struct {
	provisioner    ProvisionUsecase
	baseURL        *url.URL
	defaultLanding string
	logger         *zerolog.Logger
}

// NewCallbackController creates a CallbackController that resolves redirects
// against baseURL and lands on defaultLanding when no returnTo was requested.
func NewCallbackController(
	provisioner ProvisionUsecase,
	baseURL string,
	defaultLanding string,
	logger *zerolog.Logger,
) (*CallbackController, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	return &CallbackController{
		provisioner:    provisioner,
		baseURL:        u,
		defaultLanding: defaultLanding,
		logger:         logger,
	}, nil
}

// Handle runs once per login callback and returns the absolute redirect URL.
func (c *CallbackController) Handle(
	ctx context.Context,
	callbackErr error,
	cbCtx CallbackContext,
	session *model.RawSession,
) (redirect string) {
	defer func() {
		if r := recover(); r != nil {
			redirect = c.fail(fmt.Errorf("unexpected error in authentication callback: %v", r))
		}
	}()

	if callbackErr != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrSession, callbackErr))
	}
	if session == nil {
		return c.fail(fmt.Errorf("%w: no session", ErrSession))
	}

	id := resolveIdentity(ctx, *session)
	if !id.HasLocalID() {
		return c.fail(fmt.Errorf("%w: malformed subject %q", ErrValidation, session.User.ProviderQualifiedSub))
	}

	profile, err := c.provisioner.EnsureProfile(ctx, EnsureProfileParams{
		Identity:   id,
		Name:       session.User.Name,
		Nickname:   session.User.Nickname,
		Email:      session.User.Email,
		ProviderID: id.ProviderID,
	})
	if err != nil {
		return c.fail(fmt.Errorf("ensure profile for %s: %w", id.Key, err))
	}

	metrics.AuthCallbacks.WithLabelValues("success").Inc()
	c.logger.Debug().Str("sub", profile.Sub).Msg("login callback completed")

	return c.resolve(cbCtx.ReturnTo)
}

func (c *CallbackController) fail(err error) string {
	metrics.AuthCallbacks.WithLabelValues("failure").Inc()
	c.logger.Error().Err(err).Msg("login callback failed, redirecting to logout")

	return c.absolute(config.LogoutPath)
}

// resolve turns returnTo into an absolute URL on the application origin,
// falling back to the default landing for empty or off-origin targets.
func (c *CallbackController) resolve(returnTo string) string {
	if returnTo == "" {
		return c.absolute(c.defaultLanding)
	}

	ref, err := url.Parse(returnTo)
	if err != nil || ref.IsAbs() || ref.Host != "" {
		return c.absolute(c.defaultLanding)
	}

	return c.baseURL.ResolveReference(ref).String()
}

func (c *CallbackController) absolute(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: path}).String()
}
