package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileConflict = errors.New("profile already exists")
)

// ProfileRepository is the profile store contract used by provisioning and
// the dashboard read path.
type ProfileRepository interface {
	// FindProfileByIdentityOrEmail returns the profile whose sub equals sub or,
	// when email is not empty, whose email equals email. A sub match wins over
	// an email match on a different document.
	FindProfileByIdentityOrEmail(ctx context.Context, sub, email string) (*model.Profile, error)

	// InsertProfile always inserts. Unique index violations are reported as ErrProfileConflict.
	InsertProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error)

	// GetUserProfile returns the profile whose sub equals sub.
	GetUserProfile(ctx context.Context, sub string) (*model.Profile, error)
}

const profileCollection = "profiles"

type profileMongoRepository struct {
	db *mongo.Database
}

// NewProfileMongoRepository creates the profile repository and its unique
// indexes on sub and (when present) email.
func NewProfileMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) ProfileRepository {
	collection := db.Collection(profileCollection)

	if _, err := collection.Indexes().CreateMany(ctx, profileIndexes()); err != nil {
		logger.Fatal().Err(err).Msg("failed to create profile indexes")
	}

	return &profileMongoRepository{db: db}
}

func (r *profileMongoRepository) FindProfileByIdentityOrEmail(
	ctx context.Context,
	sub string,
	email string,
) (*model.Profile, error) {
	// Unique indexes allow at most one document per clause.
	cursor, err := r.db.Collection(profileCollection).Find(
		ctx,
		identityOrEmailFilter(sub, email),
		options.Find().SetLimit(2),
	)
	if err != nil {
		return nil, err
	}

	var candidates []*model.Profile
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, err
	}

	profile := pickProfile(candidates, sub)
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	return profile, nil
}

func (r *profileMongoRepository) InsertProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	profile.CreatedAt = time.Now()

	result, err := r.db.Collection(profileCollection).InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %v", ErrProfileConflict, err)
		}
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		profile.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return profile, nil
}

func (r *profileMongoRepository) GetUserProfile(ctx context.Context, sub string) (*model.Profile, error) {
	if sub == "" {
		return nil, ErrProfileNotFound
	}

	var profile model.Profile
	err := r.db.Collection(profileCollection).FindOne(ctx, bson.M{"sub": sub}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// profileIndexes makes sub unique and email unique among profiles that have one.
func profileIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sub", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	}
}

// identityOrEmailFilter matches sub, or sub OR email when email is set.
func identityOrEmailFilter(sub, email string) bson.D {
	if email == "" {
		return bson.D{{Key: "sub", Value: sub}}
	}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "sub", Value: sub}},
		bson.D{{Key: "email", Value: email}},
	}}}
}

// pickProfile prefers the candidate whose sub matches, then any candidate.
func pickProfile(candidates []*model.Profile, sub string) *model.Profile {
	for _, p := range candidates {
		if p.Sub == sub {
			return p
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}
