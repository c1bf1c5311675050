// Package api собирает HTTP API сервиса: хранилище, кэш, брокер,
// платёжный провайдер, хранилище изображений и сервисы бизнес-логики.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/journal-accounts/internal/billingprovider"
	"github.com/magabrotheeeer/journal-accounts/internal/cache"
	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/identity"
	customjwt "github.com/magabrotheeeer/journal-accounts/internal/lib/jwt"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/migrations"
	"github.com/magabrotheeeer/journal-accounts/internal/objectstore"
	"github.com/magabrotheeeer/journal-accounts/internal/services/account"
	authservice "github.com/magabrotheeeer/journal-accounts/internal/services/auth"
	"github.com/magabrotheeeer/journal-accounts/internal/services/billing"
	"github.com/magabrotheeeer/journal-accounts/internal/services/deletion"
	"github.com/magabrotheeeer/journal-accounts/internal/services/entries"
	"github.com/magabrotheeeer/journal-accounts/internal/services/trial"
	"github.com/magabrotheeeer/journal-accounts/internal/storage"
)

// App — HTTP API.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает внешние системы, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.api.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	app := &App{logger: logger, db: db, cache: cacheRedis}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	app.conn = conn
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AccountsExchange, rabbitmq.AccountQueues())
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}
	app.ch = ch

	provider, err := billingprovider.New(cfg.Billing)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	objects, err := objectstore.New(ctx, cfg.ObjectStorage, logger)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	idp := identity.New(db)
	jwtMaker := customjwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL, cfg.Issuer)
	trials := trial.New(db, cfg.TrialLength, logger)

	svc := Services{
		Auth:     authservice.NewAuthService(idp, jwtMaker),
		Account:  account.New(db, trials, cacheRedis, cache.UserKey, cfg.UserCacheTTL, logger),
		Entries:  entries.New(db, trials, cacheRedis, cache.UserKey, logger),
		Billing:  billing.New(db, provider, idp, cacheRedis, cache.UserKey, logger),
		Webhooks: provider,
		Deletion: deletion.New(deletion.Deps{
			Repo:      db,
			Billing:   provider,
			Objects:   objects,
			Identity:  idp,
			Publisher: rabbitmq.NewAccountPublisher(ch),
			Cache:     cacheRedis,
			CacheKey:  cache.UserKey,
		}, deletion.Options{
			GracePeriod:    cfg.GracePeriod,
			AccountTimeout: cfg.SweepAccountTimeout,
			EntryBatch:     cfg.EntryDeleteBatch,
		}, logger),
		Tokens: jwtMaker,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.CallableTimeout + cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы, пока ctx не отменён, затем корректно
// останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
