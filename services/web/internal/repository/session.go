package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists enriched sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.EnrichedSession) (*model.EnrichedSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.EnrichedSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

const sessionCollection = "sessions"

type sessionMongoRepository struct {
	db *mongo.Database
}

// NewSessionMongoRepository creates the session repository. Sessions expire
// through a TTL index on expires_at.
func NewSessionMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) SessionRepository {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	if _, err := db.Collection(sessionCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create session indexes")
	}

	return &sessionMongoRepository{db: db}
}

func (r *sessionMongoRepository) CreateSession(
	ctx context.Context,
	session *model.EnrichedSession,
) (*model.EnrichedSession, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.db.Collection(sessionCollection).InsertOne(ctx, session)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		session.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return session, nil
}

func (r *sessionMongoRepository) GetSession(ctx context.Context, sessionID string) (*model.EnrichedSession, error) {
	filter := bson.M{
		"session_id": sessionID,
		"expires_at": bson.M{"$gt": time.Now()},
	}

	var session model.EnrichedSession
	if err := r.db.Collection(sessionCollection).FindOne(ctx, filter).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionMongoRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Collection(sessionCollection).DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}
