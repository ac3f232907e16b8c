package main

import (
	"context"

	"github.com/vasapolrittideah/flowup/services/web/internal/config"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/shared/logger"
)

// runMigrate creates the collection indexes. The repository constructors own
// the index definitions.
func runMigrate(ctx context.Context) error {
	cfg, err := config.NewWebConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	client, db, err := connectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer disconnectMongo(client, log)

	repository.NewProfileMongoRepository(ctx, log, db)
	repository.NewSessionMongoRepository(ctx, log, db)
	repository.NewLoginTransactionMongoRepository(ctx, log, db)

	log.Info().Str("database", cfg.Mongo.Database).Msg("indexes are up to date")

	return nil
}
