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

var ErrTransactionNotFound = errors.New("login transaction not found")

// LoginTransactionRepository stores in-flight authorization requests.
type LoginTransactionRepository interface {
	// CreateTransaction stores a new transaction.
	CreateTransaction(ctx context.Context, txn *model.LoginTransaction) (*model.LoginTransaction, error)

	// ConsumeTransaction marks the unexpired, unused transaction for state as
	// used and returns it. Any other state yields ErrTransactionNotFound.
	ConsumeTransaction(ctx context.Context, state string) (*model.LoginTransaction, error)
}

const loginTransactionCollection = "login_transactions"

type loginTransactionMongoRepository struct {
	db *mongo.Database
}

// NewLoginTransactionMongoRepository creates a MongoDB repository for login transactions.
func NewLoginTransactionMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) LoginTransactionRepository {
	collection := db.Collection(loginTransactionCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create login transaction indexes")
	}

	return &loginTransactionMongoRepository{
		db: db,
	}
}

func (r *loginTransactionMongoRepository) CreateTransaction(
	ctx context.Context,
	txn *model.LoginTransaction,
) (*model.LoginTransaction, error) {
	txn.CreatedAt = time.Now()
	txn.Used = false

	result, err := r.db.Collection(loginTransactionCollection).InsertOne(ctx, txn)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		txn.ID = objectID
	}

	return txn, nil
}

func (r *loginTransactionMongoRepository) ConsumeTransaction(
	ctx context.Context,
	state string,
) (*model.LoginTransaction, error) {
	filter := bson.M{
		"state":      state,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now()},
	}
	update := bson.M{"$set": bson.M{"used": true}}

	var txn model.LoginTransaction
	err := r.db.Collection(loginTransactionCollection).FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	return &txn, nil
}
