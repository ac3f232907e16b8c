package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/vasapolrittideah/flowup/services/web/internal/authclient"
	"github.com/vasapolrittideah/flowup/services/web/internal/config"
	"github.com/vasapolrittideah/flowup/services/web/internal/handler"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/services/web/internal/usecase"
	"github.com/vasapolrittideah/flowup/shared/cache"
	"github.com/vasapolrittideah/flowup/shared/logger"
	"github.com/vasapolrittideah/flowup/shared/mailer"
	"github.com/vasapolrittideah/flowup/shared/metrics"
	"github.com/vasapolrittideah/flowup/shared/provider"
	"github.com/vasapolrittideah/flowup/shared/utilities"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context) error {
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

	profileRepo := repository.NewProfileMongoRepository(ctx, log, db)
	sessionRepo := repository.NewSessionMongoRepository(ctx, log, db)
	transactionRepo := repository.NewLoginTransactionMongoRepository(ctx, log, db)

	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache client: %w", err)
	}
	defer cacheClient.Close()

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	idp, err := provider.NewOIDCProvider(ctx, cfg.Auth.Config, cfg.CallbackURL())
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	landingURL := cfg.BaseURL() + cfg.Auth.SignInReturnToPath
	notifier := usecase.NewWelcomeNotifier(mailer.NewMailer(cfg.SMTP, log), landingURL)
	provisioner := usecase.NewProvisionUsecase(profileRepo, notifier, log)

	controller, err := usecase.NewCallbackController(provisioner, cfg.BaseURL(), cfg.Auth.SignInReturnToPath, log)
	if err != nil {
		return err
	}

	authClient := authclient.NewClient(authclient.Config{
		BaseURL:        cfg.BaseURL(),
		CookieName:     cfg.Session.CookieName,
		CookieSecure:   cfg.SecureCookies(),
		SessionSecret:  cfg.Session.Secret,
		SessionTTL:     cfg.Session.TTL,
		TransactionTTL: cfg.Auth.TransactionTTL,
	}, idp, transactionRepo, sessionRepo, usecase.BeforeSessionSaved, controller, log)

	webHandler := handler.NewWebHandler(
		usecase.NewProfileQueryUsecase(profileRepo, cacheClient, cfg.Cache.DefaultTTL, log),
		log,
	)

	router := handler.NewRouter(authClient, webHandler, handler.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		HealthChecks: map[string]utilities.HealthCheck{
			"mongo": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		},
	}, log)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("base_url", cfg.BaseURL()).Msg("web service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down web service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

func disconnectMongo(client *mongo.Client, log *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("failed to disconnect from MongoDB")
	}
}
