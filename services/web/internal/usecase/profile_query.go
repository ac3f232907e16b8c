package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/shared/cache"
	"github.com/vasapolrittideah/flowup/shared/metrics"
)

// ProfileQueryUsecase serves profile reads for signed-in pages. It is never
// used by provisioning, which always reads the store directly.
type ProfileQueryUsecase interface {
	// GetProfile resolves the profile the same way login does: by sub, or by
	// email when the login was matched to a profile created under another
	// provider. Results are cached under sub.
	GetProfile(ctx context.Context, sub, email string) (*model.Profile, error)
}

type profileQueryUsecase struct {
	profileRepo repository.ProfileRepository
	cache       cache.Client
	ttl         time.Duration
	logger      *zerolog.Logger
}

// NewProfileQueryUsecase creates a cached profile reader.
func NewProfileQueryUsecase(
	profileRepo repository.ProfileRepository,
	cacheClient cache.Client,
	ttl time.Duration,
	logger *zerolog.Logger,
) ProfileQueryUsecase {
	return &profileQueryUsecase{
		profileRepo: profileRepo,
		cache:       cacheClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func (u *profileQueryUsecase) GetProfile(ctx context.Context, sub, email string) (*model.Profile, error) {
	key := "profile:" + sub

	if raw, err := u.cache.Get(ctx, key); err == nil {
		var profile model.Profile
		if err := json.Unmarshal(raw, &profile); err == nil {
			metrics.ProfileCacheLookups.WithLabelValues("hit").Inc()
			return &profile, nil
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		u.logger.Warn().Err(err).Msg("profile cache read failed")
	}
	metrics.ProfileCacheLookups.WithLabelValues("miss").Inc()

	profile, err := u.lookup(ctx, sub, email)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(profile); err == nil {
		if err := u.cache.Set(ctx, key, raw, u.ttl); err != nil {
			u.logger.Warn().Err(err).Msg("profile cache write failed")
		}
	}

	return profile, nil
}

func (u *profileQueryUsecase) lookup(ctx context.Context, sub, email string) (*model.Profile, error) {
	if email == "" {
		return u.profileRepo.GetUserProfile(ctx, sub)
	}
	return u.profileRepo.FindProfileByIdentityOrEmail(ctx, sub, email)
}
