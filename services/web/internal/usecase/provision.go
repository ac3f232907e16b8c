package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/flowup/services/web/internal/identity"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/shared/logger"
	"github.com/vasapolrittideah/flowup/shared/metrics"
	"github.com/vasapolrittideah/flowup/shared/validation"
)

// ProvisionUsecase ensures exactly one profile exists per canonical identity or email.
type ProvisionUsecase interface {
	// EnsureProfile returns the existing profile for the identity or email,
	// creating it on first login. Existing profiles are never updated.
	EnsureProfile(ctx context.Context, params EnsureProfileParams) (*model.Profile, error)
}

// EnsureProfileParams carries what one login reports about the user.
type EnsureProfileParams struct {
	Identity   identity.CanonicalIdentity
	Name       string
	Nickname   string
	Email      string
	ProviderID string
}

// ProfileNotifier is told about newly created profiles.
type ProfileNotifier interface {
	ProfileCreated(ctx context.Context, profile *model.Profile) error
}

type newProfileInput struct {
	Sub   string `validate:"required"`
	Name  string `validate:"required"`
	Email string `validate:"required"`
}

type provisionUsecase struct {
	profileRepo repository.ProfileRepository
	notifier    ProfileNotifier
	validator   *validation.Validator
	logger      *zerolog.Logger
}

// NewProvisionUsecase creates a ProvisionUsecase. notifier may be nil.
func NewProvisionUsecase(
	profileRepo repository.ProfileRepository,
	notifier ProfileNotifier,
	logger *zerolog.Logger,
) ProvisionUsecase {
	return &provisionUsecase{
		profileRepo: profileRepo,
		notifier:    notifier,
		validator:   validation.New(),
		logger:      logger,
	}
}

func (u *provisionUsecase) EnsureProfile(ctx context.Context, params EnsureProfileParams) (*model.Profile, error) {
	if !params.Identity.HasLocalID() {
		return nil, fmt.Errorf("%w: subject has no local id", ErrValidation)
	}
	key := params.Identity.Key

	existing, err := u.profileRepo.FindProfileByIdentityOrEmail(ctx, key, params.Email)
	if err == nil {
		metrics.ProfilesProvisioned.WithLabelValues("existing").Inc()
		return existing, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, fmt.Errorf("lookup profile: %w", err)
	}

	input := newProfileInput{
		Sub:   key,
		Name:  resolveDisplayName(params),
		Email: params.Email,
	}
	if err := u.validator.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := u.profileRepo.InsertProfile(ctx, &model.Profile{
		Sub:      input.Sub,
		Name:     input.Name,
		Email:    input.Email,
		Provider: params.ProviderID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProfileConflict) {
			return u.rereadAfterConflict(ctx, key, params.Email, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}
	if created == nil {
		return nil, fmt.Errorf("%w: insert returned no profile", ErrProvisioning)
	}

	metrics.ProfilesProvisioned.WithLabelValues("created").Inc()
	u.logger.Info().
		Str("sub", created.Sub).
		Str("provider", created.Provider).
		Str("email_masked", logger.MaskEmail(created.Email)).
		Msg("profile created")

	u.notify(ctx, created)

	return created, nil
}

// rereadAfterConflict resolves a lost insert race: another callback created
// the profile between our lookup and insert, so the winner is returned.
func (u *provisionUsecase) rereadAfterConflict(ctx context.Context, key, email string, cause error) (*model.Profile, error) {
	profile, err := u.profileRepo.FindProfileByIdentityOrEmail(ctx, key, email)
	if err != nil {
		return nil, fmt.Errorf("%w: conflict re-read: %v (insert: %v)", ErrProvisioning, err, cause)
	}

	metrics.ProfilesProvisioned.WithLabelValues("conflict_reread").Inc()
	u.logger.Warn().Str("sub", key).Msg("concurrent profile creation, using existing profile")

	return profile, nil
}

// notify runs the notifier in the background so that a slow mail server
// never holds up the login redirect.
func (u *provisionUsecase) notify(ctx context.Context, profile *model.Profile) {
	if u.notifier == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	snapshot := *profile
	go func() {
		if err := u.notifier.ProfileCreated(ctx, &snapshot); err != nil {
			u.logger.Error().Err(err).Str("sub", snapshot.Sub).Msg("failed to notify profile creation")
		}
	}()
}

// resolveDisplayName prefers the nickname for email/password accounts and
// the provider-supplied name otherwise.
func resolveDisplayName(params EnsureProfileParams) string {
	if params.ProviderID == identity.EmailPasswordProvider {
		return params.Nickname
	}
	return params.Name
}
